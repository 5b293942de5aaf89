package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// Override searchPathsFunc to avoid finding real config files on
	// developer/deploy machines (~/.config/ikdisplay/config.yaml, etc.).
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("xmpp:\n  password: ${IKDISPLAY_TEST_PASSWORD}\n"), 0600)
	os.Setenv("IKDISPLAY_TEST_PASSWORD", "secret123")
	defer os.Unsetenv("IKDISPLAY_TEST_PASSWORD")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.XMPP.Password != "secret123" {
		t.Errorf("xmpp.password = %q, want %q", cfg.XMPP.Password, "secret123")
	}
}

func TestLoad_InlineSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("twitter:\n  consumer_key: test-consumer-key\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Twitter.ConsumerKey != "test-consumer-key" {
		t.Errorf("consumer_key = %q, want %q", cfg.Twitter.ConsumerKey, "test-consumer-key")
	}
}

func TestApplyDefaults_Ports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("xmpp:\n  jid: bot@example.com\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("listen.port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Admin.Port != 8081 {
		t.Errorf("admin.port = %d, want 8081", cfg.Admin.Port)
	}
	if cfg.XMPP.Port != 5222 {
		t.Errorf("xmpp.port = %d, want 5222", cfg.XMPP.Port)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, "./data")
	}
	if cfg.TextsDir != "./texts" {
		t.Errorf("texts_dir = %q, want %q", cfg.TextsDir, "./texts")
	}
}

func TestApplyDefaults_PubSubServiceFallsBackToXMPPServer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("xmpp:\n  server: pubsub.example.com\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.PubSub.Service != "pubsub.example.com" {
		t.Errorf("pubsub.service = %q, want %q", cfg.PubSub.Service, "pubsub.example.com")
	}
}

func TestApplyDefaults_PubSubServiceExplicitNotOverridden(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("xmpp:\n  server: xmpp.example.com\npubsub:\n  service: pubsub.other.com\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.PubSub.Service != "pubsub.other.com" {
		t.Errorf("pubsub.service = %q, want %q", cfg.PubSub.Service, "pubsub.other.com")
	}
}

func TestValidate_ListenPortOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 70000\n"), 0600)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for out-of-range listen.port")
	}
}

func TestValidate_AdminPortOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("admin:\n  port: 70000\n"), 0600)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for out-of-range admin.port")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("log_level: not-a-level\n"), 0600)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for invalid log_level")
	}
}

func TestValidate_ValidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("log_level: debug\n"), 0600)

	if _, err := Load(path); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestXMPPConfig_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  XMPPConfig
		want bool
	}{
		{"all set", XMPPConfig{JID: "bot@example.com", Password: "secret"}, true},
		{"no jid", XMPPConfig{JID: "", Password: "secret"}, false},
		{"no password", XMPPConfig{JID: "bot@example.com", Password: ""}, false},
		{"neither", XMPPConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTwitterConfig_Configured(t *testing.T) {
	full := TwitterConfig{ConsumerKey: "a", ConsumerSecret: "b", AccessToken: "c", AccessSecret: "d"}
	if !full.Configured() {
		t.Error("expected fully populated TwitterConfig to be Configured")
	}

	missing := full
	missing.AccessSecret = ""
	if missing.Configured() {
		t.Error("expected TwitterConfig missing access_secret to not be Configured")
	}
}
