package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://www.bamf.de/abschlusspruefung"

func TestCompose(t *testing.T) {
	composer := Composer{SourceURL: testURL, RecipientName: "Vera"}

	tests := []struct {
		name        string
		notice      exam.Notice
		wantSubject string
		contains    []string
		notContains []string
	}{
		{
			name: "target appeared",
			notice: exam.Notice{
				Kind:                 exam.KindTargetAppeared,
				TargetDate:           "04.02.2026",
				StatusDate:           "04.02.2026",
				TerminationAfterDays: 14,
				TargetFoundAt:        time.Now(),
			},
			wantSubject: SubjectTargetAppeared,
			contains: []string{
				"Hello Vera,",
				"Prüfungsdatum 04.02.2026",
				"Monitoring will continue for 14 days.",
				testURL,
			},
		},
		{
			name: "date changed",
			notice: exam.Notice{
				Kind:                 exam.KindDateChanged,
				TargetDate:           "04.02.2026",
				StatusDate:           "02.02.2026",
				PreviousDate:         "04.02.2026",
				TerminationAfterDays: 14,
			},
			wantSubject: SubjectDateChanged,
			contains: []string{
				"previously detected target date 04.02.2026",
				"has changed to:\n\n02.02.2026",
				testURL,
			},
		},
		{
			name: "terminated",
			notice: exam.Notice{
				Kind:                 exam.KindTerminated,
				TargetDate:           "04.02.2026",
				StatusDate:           "04.02.2026",
				TerminationAfterDays: 14,
			},
			wantSubject: SubjectTerminated,
			contains: []string{
				"Monitoring service has now been terminated.",
				"14 days passed after\ntarget date 04.02.2026 appeared.",
				"No further checks will be performed.",
			},
			notContains: []string{testURL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := composer.Compose(tt.notice)

			assert.Equal(t, tt.wantSubject, msg.Subject)
			for _, want := range tt.contains {
				assert.Contains(t, msg.Body, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, msg.Body, unwanted)
			}
		})
	}
}

func TestCompose_AnonymousGreeting(t *testing.T) {
	msg := Composer{}.Compose(exam.Notice{Kind: exam.KindTargetAppeared, TargetDate: "04.02.2026"})

	assert.True(t, strings.HasPrefix(msg.Body, "Hello,\n"))
	assert.NotContains(t, msg.Body, "Link:")
}

func TestDryRunNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewDryRunNotifier(&buf)

	require.NoError(t, n.Notify(context.Background(), Message{Subject: "First", Body: "one"}))
	require.NoError(t, n.Notify(context.Background(), Message{Subject: "Second", Body: "two"}))

	out := buf.String()
	assert.Contains(t, out, "--- Email 1 ---\nSubject: First")
	assert.Contains(t, out, "--- Email 2 ---\nSubject: Second")
	assert.Contains(t, out, "two")
}

func TestNewEmailNotifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SMTPConfig
		wantErr bool
	}{
		{
			name: "complete config",
			cfg: SMTPConfig{
				Username: "sender@example.com",
				Password: "app-password",
				From:     "sender@example.com",
				To:       "operator@example.com",
			},
		},
		{
			name: "missing password",
			cfg: SMTPConfig{
				Username: "sender@example.com",
				From:     "sender@example.com",
				To:       "operator@example.com",
			},
			wantErr: true,
		},
		{
			name:    "empty config",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewEmailNotifier(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultSMTPHost, n.cfg.Host)
			assert.Equal(t, DefaultSMTPPort, n.cfg.Port)
		})
	}
}

func TestEmailNotifier_BuildMessage(t *testing.T) {
	n, err := NewEmailNotifier(SMTPConfig{
		Username: "sender@example.com",
		Password: "app-password",
		From:     "sender@example.com",
		To:       "operator@example.com",
	})
	require.NoError(t, err)

	m, err := n.buildMessage(Message{Subject: SubjectDateChanged, Body: "Hello,\n\nsee link"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: "+SubjectDateChanged)
	assert.Contains(t, raw, "sender@example.com")
	assert.Contains(t, raw, "operator@example.com")
	assert.Contains(t, raw, "text/plain")
	assert.NotContains(t, raw, "app-password")
}

func TestEmailNotifier_InvalidAddress(t *testing.T) {
	n, err := NewEmailNotifier(SMTPConfig{
		Username: "sender@example.com",
		Password: "app-password",
		From:     "sender@example.com",
		To:       "not an address",
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), Message{Subject: "x", Body: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient address")
}

// smtpConfigFor points an SMTPConfig at a local address.
func smtpConfigFor(t *testing.T, addr string) SMTPConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return SMTPConfig{
		Host:     host,
		Port:     port,
		Username: "sender@example.com",
		Password: "app-password",
		From:     "sender@example.com",
		To:       "operator@example.com",
		Timeout:  2 * time.Second,
	}
}

func TestEmailNotifier_NotifyTransportErrors(t *testing.T) {
	t.Run("connection dropped before greeting", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				conn.Close()
			}
		}()

		cfg := smtpConfigFor(t, ln.Addr().String())
		n, err := NewEmailNotifier(cfg)
		require.NoError(t, err)

		err = n.Notify(context.Background(), Message{Subject: SubjectTargetAppeared, Body: "Hello,"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), fmt.Sprintf("sending email via %s:%d", cfg.Host, cfg.Port))
	})

	t.Run("connection refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		cfg := smtpConfigFor(t, addr)
		n, err := NewEmailNotifier(cfg)
		require.NoError(t, err)

		err = n.Notify(context.Background(), Message{Subject: SubjectDateChanged, Body: "Hello,"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), fmt.Sprintf("sending email via %s:%d", cfg.Host, cfg.Port))
	})

	t.Run("canceled context", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		n, err := NewEmailNotifier(smtpConfigFor(t, ln.Addr().String()))
		require.NoError(t, err)

		err = n.Notify(ctx, Message{Subject: SubjectTerminated, Body: "Hello,"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sending email via")
	})
}
