// Package bridge serves the current endpoint membership to the local search
// service. Every accepted connection receives one JSON array line, then the
// connection is closed.
package bridge

import (
    "bufio"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net"
    "sync"
    "time"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
)

// DefaultAddr binds an ephemeral loopback port.
const DefaultAddr = "127.0.0.1:0"

type Server struct {
    Directory discovery.Directory
    Endpoint  string
    Logger    *log.Logger
    // Timeout bounds one directory lookup plus write.
    Timeout time.Duration

    ln     net.Listener
    wg     sync.WaitGroup
    closed chan struct{}
    once   sync.Once
}

// Listen binds addr (DefaultAddr when empty).
func Listen(addr string, dir discovery.Directory, endpoint string, logger *log.Logger) (*Server, error) {
    if addr == "" { addr = DefaultAddr }
    if dir == nil { return nil, errors.New("bridge: nil directory") }
    if logger == nil { logger = log.Default() }
    ln, err := net.Listen("tcp", addr)
    if err != nil { return nil, fmt.Errorf("bridge: listen %s: %w", addr, err) }
    return &Server{Directory: dir, Endpoint: endpoint, Logger: logger, Timeout: 5 * time.Second, ln: ln, closed: make(chan struct{})}, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Port() int {
    if a, ok := s.ln.Addr().(*net.TCPAddr); ok { return a.Port }
    return 0
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
    go func() {
        select {
        case <-ctx.Done():
            _ = s.Close()
        case <-s.closed:
        }
    }()
    logutil.Infof(s.Logger, "runtime bridge listening on %s", s.Addr())
    for {
        conn, err := s.ln.Accept()
        if err != nil {
            select {
            case <-s.closed:
                s.wg.Wait()
                return nil
            default:
            }
            var ne net.Error
            if errors.As(err, &ne) && ne.Timeout() {
                time.Sleep(50 * time.Millisecond)
                continue
            }
            return fmt.Errorf("bridge: accept: %w", err)
        }
        s.wg.Add(1)
        go func() {
            defer s.wg.Done()
            s.handle(ctx, conn)
        }()
    }
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
    defer conn.Close()
    ctx, cancel := context.WithTimeout(ctx, s.Timeout)
    defer cancel()
    list, err := s.Directory.Instances(ctx, s.Endpoint)
    if err != nil {
        logutil.Warnf(s.Logger, "bridge: listing %s instances: %v", s.Endpoint, err)
        list = nil
    }
    if list == nil { list = []discovery.Instance{} }
    b, _ := json.Marshal(list)
    _ = conn.SetWriteDeadline(time.Now().Add(s.Timeout))
    if _, err := conn.Write(append(b, '\n')); err != nil {
        logutil.Warnf(s.Logger, "bridge: write to %s: %v", conn.RemoteAddr(), err)
    }
}

func (s *Server) Close() error {
    var err error
    s.once.Do(func() {
        close(s.closed)
        err = s.ln.Close()
    })
    return err
}

// Fetch connects to a bridge at addr and decodes the served list.
func Fetch(ctx context.Context, addr string) ([]discovery.Instance, error) {
    var d net.Dialer
    conn, err := d.DialContext(ctx, "tcp", addr)
    if err != nil { return nil, err }
    defer conn.Close()
    if dl, ok := ctx.Deadline(); ok { _ = conn.SetReadDeadline(dl) }
    line, err := bufio.NewReader(conn).ReadBytes('\n')
    if err != nil && len(line) == 0 { return nil, err }
    var out []discovery.Instance
    if err := json.Unmarshal(line, &out); err != nil { return nil, fmt.Errorf("bridge: decode: %w", err) }
    return out, nil
}
