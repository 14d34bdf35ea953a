package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/cacheaside/config"
	"github.com/unkn0wn-root/cacheaside/internal/roster"
)

func TestPickCodecRoundTrip(t *testing.T) {
	for _, name := range []string{"json", "msgpack", "cbor"} {
		t.Run(name, func(t *testing.T) {
			cd, err := pickCodec(name)
			if err != nil {
				t.Fatalf("pickCodec: %v", err)
			}
			b, err := cd.Encode(roster.Seed())
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := cd.Decode(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(roster.Seed(), got); diff != "" {
				t.Fatalf("round trip (-want +got):\n%s", diff)
			}
		})
	}
	if _, err := pickCodec("xml"); err == nil {
		t.Fatalf("expected unknown codec error")
	}
}

func TestRunAgainstBolt(t *testing.T) {
	t.Setenv(config.EnvBackend, "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "demo.toml")
	body := "backend = \"bolt\"\n\n[bolt]\npath = \"" + filepath.ToSlash(filepath.Join(dir, "demo.db")) + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"-config", cfgPath, "-delay", "0s", "-codec", "msgpack"}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	t.Setenv(config.EnvBackend, "")
	if err := run([]string{"-codec", "xml", "-delay", "0s"}); err == nil {
		t.Fatalf("expected codec error")
	}
}
