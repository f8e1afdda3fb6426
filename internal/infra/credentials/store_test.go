package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"listingshots/internal/domain"
	"listingshots/internal/sqlinline"
)

type stubExecutor struct {
	token   string
	err     error
	tag     pgconn.CommandTag
	queried []any
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return s.tag, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried = args
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	exec := &stubExecutor{token: " abc123 "}
	key, err := NewStore(exec).Token(context.Background(), " Gemini ")
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
	if len(exec.queried) != 1 || exec.queried[0] != ProviderGemini {
		t.Fatalf("provider not normalized: %v", exec.queried)
	}
}

func TestToken_NoRows(t *testing.T) {
	key, err := NewStore(&stubExecutor{err: pgx.ErrNoRows}).Token(context.Background(), ProviderQwen)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)

	key, err := store.Resolve(context.Background(), ProviderGemini, " from-env ")
	if err != nil || key != "from-env" {
		t.Fatalf("expected env key, got %q %v", key, err)
	}
	if exec.queried != nil {
		t.Fatalf("store should not be queried when env key is set")
	}
	key, err = store.Resolve(context.Background(), ProviderGemini, "")
	if err != nil || key != "stored" {
		t.Fatalf("expected stored key, got %q %v", key, err)
	}

	var nilStore *Store
	if key, err := nilStore.Resolve(context.Background(), ProviderQwen, ""); err != nil || key != "" {
		t.Fatalf("nil store should resolve to empty key, got %q %v", key, err)
	}
}

func TestSetToken(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).SetToken(context.Background(), "qwen", "secret", map[string]any{"note": "cli"}); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetTokenValidation(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetToken(context.Background(), ProviderGemini, " ", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.SetToken(context.Background(), "openai", "k", nil); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestDeleteToken(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("DELETE 1")}
	if err := NewStore(exec).DeleteToken(context.Background(), " QWEN "); err != nil {
		t.Fatalf("DeleteToken error: %v", err)
	}
	if exec.exec.query != sqlinline.QDeleteIntegrationToken || exec.exec.args[0] != ProviderQwen {
		t.Fatalf("unexpected delete call %q %v", exec.exec.query, exec.exec.args)
	}

	missing := &stubExecutor{tag: pgconn.NewCommandTag("DELETE 0")}
	if err := NewStore(missing).DeleteToken(context.Background(), ProviderGemini); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
