package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})

	if err := svc.Send([]string{"a@example.com"}, "subject", "text", "<p>html</p>"); err == nil {
		t.Error("expected error when email is not configured")
	}
	if err := svc.SendPasswordResetEmail("a@example.com", "A", "https://example.com/reset"); err == nil {
		t.Error("expected error when email is not configured")
	}
}

func TestAuthSkippedWithoutUsername(t *testing.T) {
	anonymous := NewService(Config{Host: "smtp.example.com", Port: "587", From: "x@example.com"})
	if anonymous.auth() != nil {
		t.Error("expected nil auth when no username is configured")
	}

	withCreds := NewService(Config{Host: "smtp.example.com", Port: "587", From: "x@example.com", Username: "u", Password: "p"})
	if withCreds.auth() == nil {
		t.Error("expected SMTP auth when credentials are configured")
	}
}

func TestRenderPasswordResetTemplates(t *testing.T) {
	data := PasswordResetData{
		AppName:  "DocuVault",
		UserName: "Test User",
		ResetURL: "https://example.com/reset?token=xyz789",
	}

	html, err := renderHTML(passwordResetHTMLTemplate, data)
	if err != nil {
		t.Fatalf("renderHTML failed: %v", err)
	}
	text, err := renderText(passwordResetTextTemplate, data)
	if err != nil {
		t.Fatalf("renderText failed: %v", err)
	}

	for name, body := range map[string]string{"html": html, "text": text} {
		if !strings.Contains(body, "DocuVault") {
			t.Errorf("%s template should contain app name", name)
		}
		if !strings.Contains(body, "Test User") {
			t.Errorf("%s template should contain user name", name)
		}
		if !strings.Contains(body, "https://example.com/reset?token=xyz789") {
			t.Errorf("%s template should contain reset URL", name)
		}
		if !strings.Contains(body, "1 hour") {
			t.Errorf("%s template should mention the expiry window", name)
		}
	}

	if strings.Contains(text, "<") {
		t.Error("text template should not contain markup")
	}
}
