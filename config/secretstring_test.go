package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input SecretString
		want  string
	}{
		{name: "empty string", input: "", want: "null"},
		{name: "bearer token", input: "Bearer abc.def", want: `"` + SecretStringValue + `"`},
		{name: "short string", input: "x", want: `"` + SecretStringValue + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSecretString_FetchHeadersDump(t *testing.T) {
	cfg := FetchConfig{
		UserAgent: "dropcss",
		Headers: map[string]SecretString{
			"Authorization": "Basic dXNlcjpwYXNz",
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "dXNlcjpwYXNz") {
		t.Errorf("secret leaked into YAML:\n%s", data)
	}
	if !strings.Contains(string(data), SecretStringValue) {
		t.Errorf("expected %q placeholder in YAML:\n%s", SecretStringValue, data)
	}

	data, err = json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "dXNlcjpwYXNz") {
		t.Errorf("secret leaked into JSON: %s", data)
	}
}

func TestSecretString_NoLeakage(t *testing.T) {
	s := SecretString("super-secret")

	for _, out := range []string{
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%s", s),
		s.String(),
	} {
		if strings.Contains(out, "super-secret") {
			t.Errorf("secret leaked: %q", out)
		}
	}
	if s.Reveal() != "super-secret" {
		t.Errorf("Reveal() = %q, want actual value", s.Reveal())
	}
}

func TestSecretString_DecodeFromYAML(t *testing.T) {
	var cfg FetchConfig
	if err := yaml.Unmarshal([]byte("user_agent: x\nheaders:\n  X-Token: abc\n"), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if got := cfg.Headers["X-Token"].Reveal(); got != "abc" {
		t.Errorf("header value = %q, want %q", got, "abc")
	}
}
