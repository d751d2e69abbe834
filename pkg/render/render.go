// Package render writes the service configuration document: template keys
// pass through untouched while runtime-owned keys are always replaced.
package render

import (
    "bytes"
    "errors"
    "fmt"
    "io/fs"
    "log"
    "os"
    "path/filepath"
    "strings"

    "gopkg.in/yaml.v3"

    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
)

// Keys written by the renderer.
const (
    KeyDataPath      = "path.data"
    KeyLogsPath      = "path.logs"
    KeyWorkPath      = "path.work"
    KeyPluginsPath   = "path.plugins"
    KeyNodeName      = "node.name"
    KeyBridgeAddress = "discovery.bridge.address"
)

// DefaultReserved is the key set stripped from every template.
var DefaultReserved = []string{KeyDataPath, KeyLogsPath}

// ConfigError reports an unreadable or unparsable template.
type ConfigError struct {
    Path string
    Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("render: template %s: %v", e.Path, e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// Override is one runtime-computed key/value appended after the template keys.
type Override struct {
    Key   string
    Value string
}

// Renderer merges a template with runtime overrides.
type Renderer struct {
    // Reserved keys are dropped from the template; nil means DefaultReserved.
    Reserved []string
    Logger   *log.Logger
}

// Render loads templatePath, merges overrides and writes outputPath. A
// missing or empty template yields a document made of the overrides alone.
func (r *Renderer) Render(templatePath, outputPath string, overrides []Override) (string, error) {
    logger := r.Logger
    if logger == nil { logger = log.Default() }
    data, err := os.ReadFile(templatePath)
    if errors.Is(err, fs.ErrNotExist) {
        logutil.Warnf(logger, "config template %s not found, writing runtime keys only", templatePath)
        data, err = nil, nil
    }
    if err != nil { return "", &ConfigError{Path: templatePath, Err: err} }
    out, err := Document(data, r.Reserved, overrides)
    if err != nil { return "", &ConfigError{Path: templatePath, Err: err} }
    if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil { return "", err }
    if err := os.WriteFile(outputPath, out, 0o644); err != nil { return "", err }
    logutil.Infof(logger, "saved service config file %s", outputPath)
    return outputPath, nil
}

// Document performs the merge on raw YAML. Passthrough keys keep template
// order and node style (comments included); reserved and overridden keys are
// removed from the template and the overrides are appended in the given order.
func Document(template []byte, reserved []string, overrides []Override) ([]byte, error) {
    if reserved == nil { reserved = DefaultReserved }
    skip := make(map[string]struct{}, len(reserved)+len(overrides))
    for _, k := range reserved { skip[k] = struct{}{} }
    for _, o := range overrides { skip[o.Key] = struct{}{} }

    out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
    var doc yaml.Node
    if err := yaml.Unmarshal(template, &doc); err != nil { return nil, err }
    if root := rootOf(&doc); root != nil {
        if root.Kind != yaml.MappingNode {
            return nil, fmt.Errorf("root is a %s, not a mapping", kindName(root.Kind))
        }
        for key := range skip { strip(root, key) }
        out.Content = root.Content
        out.HeadComment = root.HeadComment
    }
    for _, o := range overrides {
        out.Content = append(out.Content,
            &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: o.Key},
            &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: o.Value})
    }

    var buf bytes.Buffer
    enc := yaml.NewEncoder(&buf)
    enc.SetIndent(2)
    if err := enc.Encode(out); err != nil { return nil, err }
    if err := enc.Close(); err != nil { return nil, err }
    return buf.Bytes(), nil
}

// strip removes the dotted key from mapping m in every spelling the service
// accepts: flat ("path.data"), nested ("path: {data: ...}") or mixed. Parents
// left empty by the removal are dropped too. It reports whether m is empty.
func strip(m *yaml.Node, key string) bool {
    kept := m.Content[:0]
    for i := 0; i+1 < len(m.Content); i += 2 {
        k, v := m.Content[i], m.Content[i+1]
        if k.Value == key { continue }
        if rest, ok := strings.CutPrefix(key, k.Value+"."); ok && v.Kind == yaml.MappingNode {
            if strip(v, rest) { continue }
        }
        kept = append(kept, k, v)
    }
    m.Content = kept
    return len(m.Content) == 0
}

// rootOf returns the top-level node of the first document, or nil for an
// empty or null document.
func rootOf(doc *yaml.Node) *yaml.Node {
    if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 { return nil }
    root := doc.Content[0]
    if root.Kind == yaml.ScalarNode && root.Tag == "!!null" { return nil }
    return root
}

func kindName(k yaml.Kind) string {
    switch k {
    case yaml.SequenceNode:
        return "sequence"
    case yaml.ScalarNode:
        return "scalar"
    case yaml.AliasNode:
        return "alias"
    default:
        return "node"
    }
}
