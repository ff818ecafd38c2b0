package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".heelix/data/heelix.db"
	}
	if cfg.Storage.VectorsDir == "" {
		cfg.Storage.VectorsDir = ".heelix/data/vectors"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".heelix/data/keyword"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 2
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 5
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chunking.MaxChunkSize == 0 {
		cfg.Chunking.MaxChunkSize = 4000
	}
	if cfg.Chunking.BreakWindow == 0 {
		cfg.Chunking.BreakWindow = 200
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "hnsw"
	}
	if cfg.Vector.M == 0 {
		cfg.Vector.M = 16
	}
	if cfg.Vector.EfConstruction == 0 {
		cfg.Vector.EfConstruction = 200
	}
	if cfg.Vector.EfSearch == 0 {
		cfg.Vector.EfSearch = 64
	}
	if cfg.Vector.Seed == 0 {
		cfg.Vector.Seed = 42
	}
	if cfg.Vector.FlushIntervalMs == 0 {
		cfg.Vector.FlushIntervalMs = 2000
	}
	if cfg.Vector.IdleEvictSecs == 0 {
		cfg.Vector.IdleEvictSecs = 900
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 20
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 50
	}
	if cfg.Retrieval.PreviewLength == 0 {
		cfg.Retrieval.PreviewLength = 150
	}
	if cfg.Vectorization.Workers == 0 {
		cfg.Vectorization.Workers = 2
	}
	if cfg.Vectorization.QueueSize == 0 {
		cfg.Vectorization.QueueSize = 256
	}
	if cfg.Import.Extensions == nil {
		cfg.Import.Extensions = []string{".txt", ".md", ".markdown", ".html", ".htm"}
	}
	for i := range cfg.Import.Folders {
		if cfg.Import.Folders[i].Project == "" {
			cfg.Import.Folders[i].Project = "Unassigned"
		}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Import.Folders) > 0 && cfg.Import.Recursive == nil {
		t := true
		cfg.Import.Recursive = &t
	}
}
