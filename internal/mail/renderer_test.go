package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(RendererConfig{
		BaseURL:       "https://ghusn.example/",
		Sender:        "Ghusn Admin <ghusn@email.com>",
		SubjectPrefix: "[Ghusn] ",
		LinkTTL:       time.Hour,
	})
	require.NoError(t, err)
	r.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return r
}

func TestRenderer_AllTemplates(t *testing.T) {
	r := newTestRenderer(t)

	paths := map[Template]string{
		TemplateConfirm:        "https://ghusn.example/auth/confirm/tok",
		TemplateChangeEmail:    "https://ghusn.example/users/me/email/tok",
		TemplateChangePassword: "https://ghusn.example/users/me/password/tok",
		TemplateResetPassword:  "https://ghusn.example/auth/reset-password/tok",
	}

	for _, id := range Templates {
		t.Run(string(id), func(t *testing.T) {
			email, err := r.Render(Notification{
				To:       "a@x.com",
				Subject:  "Subject",
				Template: id,
				Context:  map[string]any{"token": "tok", "username": "alice", "new_email": "new@x.com"},
			})
			require.NoError(t, err)

			assert.Equal(t, "[Ghusn] Subject", email.Subject)
			assert.Equal(t, "Ghusn Admin <ghusn@email.com>", email.From)
			assert.Equal(t, "a@x.com", email.To)
			assert.NotEmpty(t, email.ID)
			assert.Equal(t, time.Unix(1_700_000_000, 0), email.Date)
			assert.Contains(t, email.Text, "Dear alice")
			assert.Contains(t, email.Text, "POST "+paths[id])
			assert.Contains(t, email.HTML, "POST "+paths[id])
			assert.NotContains(t, email.HTML, "href=", "API routes are POST only")
			assert.Contains(t, email.Text, "The code expires in 1 hour.")
			assert.Contains(t, email.HTML, "The code expires in 1 hour.")
		})
	}
}

func TestRenderer_EscapesHTML(t *testing.T) {
	r := newTestRenderer(t)

	email, err := r.Render(Notification{
		To:       "a@x.com",
		Subject:  "Confirm",
		Template: TemplateConfirm,
		Context:  map[string]any{"token": "tok", "username": "<b>alice</b>"},
	})
	require.NoError(t, err)
	assert.Contains(t, email.Text, "<b>alice</b>")
	assert.NotContains(t, email.HTML, "<b>alice</b>")
	assert.Contains(t, email.HTML, "&lt;b&gt;alice&lt;/b&gt;")
}

func TestRenderer_Rejects(t *testing.T) {
	r := newTestRenderer(t)

	tests := map[string]Notification{
		"unknown template": {To: "a@x.com", Subject: "s", Template: "welcome"},
		"bad recipient":    {To: "nope", Subject: "s", Template: TemplateConfirm},
		"missing subject":  {To: "a@x.com", Template: TemplateConfirm},
		"missing context":  {To: "a@x.com", Subject: "s", Template: TemplateConfirm, Context: map[string]any{"username": "alice"}},
	}
	for name, n := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Render(n)
			assert.Error(t, err)
		})
	}
}

func TestRenderer_ExpiryFollowsTokenTTL(t *testing.T) {
	n := Notification{
		To:       "a@x.com",
		Subject:  "Reset",
		Template: TemplateResetPassword,
		Context:  map[string]any{"token": "tok", "username": "alice"},
	}

	r, err := NewRenderer(RendererConfig{BaseURL: "https://ghusn.example", LinkTTL: 30 * time.Minute})
	require.NoError(t, err)
	email, err := r.Render(n)
	require.NoError(t, err)
	assert.Contains(t, email.Text, "The code expires in 30 minutes.")
	assert.NotContains(t, email.Text, "hour")

	r, err = NewRenderer(RendererConfig{BaseURL: "https://ghusn.example"})
	require.NoError(t, err)
	email, err = r.Render(n)
	require.NoError(t, err)
	assert.NotContains(t, email.Text, "expires")
	assert.NotContains(t, email.HTML, "expires")
}

func TestFormatTTL(t *testing.T) {
	tests := map[time.Duration]string{
		0:                "",
		time.Hour:        "1 hour",
		2 * time.Hour:    "2 hours",
		48 * time.Hour:   "2 days",
		90 * time.Minute: "90 minutes",
		time.Minute:      "1 minute",
		45 * time.Second: "45s",
	}
	for ttl, want := range tests {
		assert.Equal(t, want, formatTTL(ttl), ttl.String())
	}
}
