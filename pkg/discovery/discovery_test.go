package discovery

import (
    "encoding/json"
    "testing"
)

func TestParseInstance(t *testing.T) {
    i, err := ParseInstance(" es0 = 10.0.0.4:9300 ")
    if err != nil { t.Fatal(err) }
    if i != (Instance{ID: "es0", Address: "10.0.0.4", Port: 9300}) { t.Fatalf("got %#v", i) }

    i, err = ParseInstance("[::1]:9300")
    if err != nil { t.Fatal(err) }
    if i.ID != "::1" || i.Address != "::1" || i.HostPort() != "[::1]:9300" { t.Fatalf("got %#v", i) }

    for _, bad := range []string{"", "nohost", "a=h:0", "a=h:x"} {
        if _, err := ParseInstance(bad); err == nil { t.Fatalf("expected error for %q", bad) }
    }
}

func TestNormalizeAndJSON(t *testing.T) {
    got := Normalize([]Instance{{ID: "b", Address: "h2", Port: 2}, {ID: "a", Address: "h1", Port: 1}, {ID: "b", Address: "h3", Port: 3}})
    if len(got) != 2 || got[0].ID != "a" || got[1].Address != "h2" { t.Fatalf("got %#v", got) }
    b, _ := json.Marshal(got[0])
    if string(b) != `{"nodeName":"a","ip":"h1","port":1}` { t.Fatalf("json %s", b) }
}
