package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COLLECTION_RFP", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("ALLOWED_SCRAPE_URLS", "")
	t.Setenv("RAG_REQUEST_TIMEOUT_SECONDS", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("RAG_SCRAPE_FALLBACK", "")

	cfg := Load()
	if cfg.CollectionRFP != "rfp_docs_prod" {
		t.Fatalf("expected default rfp collection, got %q", cfg.CollectionRFP)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Fatalf("expected qdrant backend by default, got %q", cfg.VectorBackend)
	}
	if cfg.AllowedScrapeURLs != nil {
		t.Fatalf("expected no allow-listed urls, got %v", cfg.AllowedScrapeURLs)
	}
	if cfg.RequestTimeout() != 45*time.Second {
		t.Fatalf("expected 45s request timeout, got %s", cfg.RequestTimeout())
	}
	if cfg.ChunkSize != 1000 || !cfg.RAGScrapeFallback {
		t.Fatalf("unexpected chunking/fallback defaults: %+v", cfg)
	}
}

func TestLoadParsesListsAndOverrides(t *testing.T) {
	t.Setenv("ALLOWED_SCRAPE_URLS", " https://elasticpath.com/pricing, ,https://elasticpath.com/features ")
	t.Setenv("ALLOWED_SCRAPE_DOMAINS", "elasticpath.dev")
	t.Setenv("VECTOR_BACKEND", "Chromem")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESILIENCE_BREAKER_OPEN_TIMEOUT", "5s")
	t.Setenv("RESILIENCE_RETRY_MAX_BACKOFF", "not-a-duration")
	t.Setenv("CHUNK_OVERLAP", "abc")

	cfg := Load()
	if len(cfg.AllowedScrapeURLs) != 2 || cfg.AllowedScrapeURLs[1] != "https://elasticpath.com/features" {
		t.Fatalf("unexpected url list: %#v", cfg.AllowedScrapeURLs)
	}
	if len(cfg.AllowedScrapeDomains) != 1 || cfg.AllowedScrapeDomains[0] != "elasticpath.dev" {
		t.Fatalf("unexpected domain list: %#v", cfg.AllowedScrapeDomains)
	}
	if cfg.VectorBackend != "chromem" {
		t.Fatalf("expected lowercased backend, got %q", cfg.VectorBackend)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ResilienceBreakerOpenTimeout != 5*time.Second {
		t.Fatalf("expected 5s open timeout, got %s", cfg.ResilienceBreakerOpenTimeout)
	}
	if cfg.ResilienceRetryMaxBackoff != 400*time.Millisecond {
		t.Fatalf("invalid duration should fall back, got %s", cfg.ResilienceRetryMaxBackoff)
	}
	if cfg.ChunkOverlap != 200 {
		t.Fatalf("invalid int should fall back, got %d", cfg.ChunkOverlap)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	content := "COLLECTION_EPCC=epcc_from_file\nCOLLECTION_EPSM=epsm_from_file\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("COLLECTION_EPCC", "epcc_from_env")
	t.Setenv("COLLECTION_EPSM", "")
	os.Unsetenv("COLLECTION_EPSM")

	cfg := Load()
	if cfg.CollectionEPCC != "epcc_from_env" {
		t.Fatalf("environment should win, got %q", cfg.CollectionEPCC)
	}
	if cfg.CollectionEPSM != "epsm_from_file" {
		t.Fatalf("expected value from .env, got %q", cfg.CollectionEPSM)
	}
}
