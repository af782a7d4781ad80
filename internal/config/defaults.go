package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/bunko/projects"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Extractor.BaseURL == "" {
		cfg.Extractor.BaseURL = cfg.Embedding.BaseURL
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = "gpt-4o-mini"
	}
	if cfg.Extractor.APIKeyEnv == "" {
		cfg.Extractor.APIKeyEnv = cfg.Embedding.APIKeyEnv
	}
	if cfg.Extractor.MaxKeywords == 0 {
		cfg.Extractor.MaxKeywords = 5
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 1000
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 10
	}
	if cfg.Search.HybridAlpha == 0 {
		cfg.Search.HybridAlpha = 0.65
	}
	if cfg.Search.CandidateFactor == 0 {
		cfg.Search.CandidateFactor = 2
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".md", ".markdown"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
