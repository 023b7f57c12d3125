package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/klauspost/compress/flate"
)

// deflateB64 builds a payload the way upstream does: JSON, raw DEFLATE,
// base64.
func deflateB64(t *testing.T, v any) string {
	t.Helper()
	plain, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err := fw.Write(plain); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	fw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeStringRoundTrip(t *testing.T) {
	tree := map[string]any{
		"Entries": []any{
			map[string]any{"Cars": map[string]any{"1": map[string]any{"Channels": map[string]any{"0": float64(11500), "2": float64(287)}}}},
		},
		"Utc": "2023-05-28T14:03:21.123Z",
	}
	got, err := DecodeString(deflateB64(t, tree))
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if !reflect.DeepEqual(got, any(tree)) {
		t.Errorf("decoded tree = %#v, want %#v", got, tree)
	}
}

func TestDecodeRawBytes(t *testing.T) {
	plain, _ := json.Marshal(map[string]any{"Position": []any{}})
	var buf bytes.Buffer
	fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	fw.Write(plain)
	fw.Close()

	t.Run("raw_deflate", func(t *testing.T) {
		got, err := Decode(buf.Bytes())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if _, ok := got.(map[string]any); !ok {
			t.Errorf("Decode returned %T, want object", got)
		}
	})

	t.Run("base64_text_as_bytes", func(t *testing.T) {
		got, err := Decode([]byte(base64.StdEncoding.EncodeToString(buf.Bytes())))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if _, ok := got.(map[string]any); !ok {
			t.Errorf("Decode returned %T, want object", got)
		}
	})
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad_base64", "%%%not base64%%%"},
		{"not_deflate", base64.StdEncoding.EncodeToString([]byte("hello"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeString(tt.in); err == nil {
				t.Error("DecodeString did not fail")
			}
		})
	}

	t.Run("deflated_non_json", func(t *testing.T) {
		var buf bytes.Buffer
		fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		fw.Write([]byte("not json at all"))
		fw.Close()
		if _, err := DecodeString(base64.StdEncoding.EncodeToString(buf.Bytes())); err == nil {
			t.Error("DecodeString did not fail on non-JSON plaintext")
		}
	})
}

func TestFeedNameSuffix(t *testing.T) {
	if !IsCompressed("CarData.z") || IsCompressed("CarData") {
		t.Error("IsCompressed misclassified feed names")
	}
	if got := TrimZ("Position.z"); got != "Position" {
		t.Errorf("TrimZ(Position.z) = %q", got)
	}
	if got := TrimZ("TimingData"); got != "TimingData" {
		t.Errorf("TrimZ(TimingData) = %q", got)
	}
}
