package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"page-rag/internal/chromemdb"
	"page-rag/internal/config"
	"page-rag/internal/db"
	"page-rag/internal/embedding"
	"page-rag/internal/helper"
	"page-rag/internal/llmservice"
	"page-rag/internal/logging"
	"page-rag/internal/parser"
	"page-rag/internal/rag"
	"page-rag/internal/server"
	"page-rag/internal/sqlitevec"
	"page-rag/internal/table"
)

const configFilePath = "./configs/config.yaml"

type app struct {
	cfg      *config.Config
	backend  table.Backend
	pipeline *rag.Pipeline
	close    func() error
}

func main() {
	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	create := flag.String("create", "", "Create the table for a document name")
	filePath := flag.String("file", "", "Path to the document file to ingest")
	name := flag.String("name", "", "Document name (defaults to the file name for -file)")
	dryRun := flag.Bool("dry-run", false, "Parse and print pages, do not embed or store")
	query := flag.String("query", "", "Return the closest chunk of -name for this query")
	ask := flag.String("ask", "", "Answer a question about -name with the inference model")
	serve := flag.Bool("serve", false, "Run the HTTP server")
	exportPath := flag.String("export", "", "Export chromem tables to a file (all, or only -name)")
	importPath := flag.String("import", "", "Import chromem tables from a file")
	encryptionKey := flag.String("encryption-key", os.Getenv("EXPORT_ENCRYPTION_KEY"), "Key for -export / -import (32 bytes, optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		err = nil
	}
	logLevel, pretty := "info", true
	if cfg != nil {
		logLevel, pretty = cfg.Log.Level, cfg.Log.Pretty
	}
	logging.Setup(logLevel, pretty)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *filePath != "" && *dryRun {
		printPages(*filePath)
		return
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing")
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Warn().Err(err).Msg("Error closing storage")
		}
	}()

	switch {
	case *create != "":
		if err := a.pipeline.CreateTable(ctx, *create); err != nil {
			log.Fatal().Err(err).Msg("Error creating table")
		}
		log.Info().Str("document", *create).Str("table", table.ID(*create)).Msg("Created table")
	case *filePath != "":
		docName := *name
		if docName == "" {
			docName = filepath.Base(*filePath)
		}
		ingestFile(ctx, a.pipeline, docName, *filePath)
	case *query != "":
		requireName(*name, "-query")
		top, err := a.pipeline.TopMatch(ctx, *name, *query)
		if err != nil {
			log.Fatal().Err(err).Msg("Error querying")
		}
		helper.PrettyPrint(os.Stdout, top)
	case *ask != "":
		requireName(*name, "-ask")
		answer, err := a.pipeline.Ask(ctx, *name, *ask)
		if err != nil {
			log.Fatal().Err(err).Msg("Error answering")
		}
		log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("[page %d] %s\n\n", answer.Source.PageNumber, answer.Source.Text)
		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", answer.Answer)
	case *exportPath != "" || *importPath != "":
		transfer(a, *exportPath, *importPath, *encryptionKey, *name)
	case *serve:
		if err := server.New(a.pipeline).Run(ctx, cfg.Server.Addr); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func requireName(name, flagName string) {
	if name == "" {
		log.Fatal().Msgf("%s needs a document name given with -name", flagName)
	}
}

// newApp connects the configured storage backend and builds the pipeline on it.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	backend, closeFn, err := openBackend(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	tables, err := table.NewManager(backend, cfg.RAG.Dimension)
	if err != nil {
		closeFn()
		return nil, err
	}

	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}

	var answerer rag.Answerer
	if cfg.InferLLM.BaseURL != "" {
		llm, err := llmservice.New(&cfg.InferLLM)
		if err != nil {
			closeFn()
			return nil, fmt.Errorf("error initializing LLM: %w", err)
		}
		answerer = llm
	}

	opts, err := rag.OptionsFromConfig(&cfg.RAG)
	if err != nil {
		closeFn()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		backend:  backend,
		pipeline: rag.NewPipeline(tables, embedder, answerer, opts),
		close:    closeFn,
	}, nil
}

func openBackend(ctx context.Context, cfg *config.DatabaseConfig) (table.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendChromem:
		m, err := chromemdb.NewVectorDBManager(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, nil, err
		}
		return m, noop, nil
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "." {
			if err := helper.CreateFolder(dir); err != nil {
				return nil, nil, err
			}
		}
		s, err := sqlitevec.NewStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		sqldb, err := db.ConnectDB(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("error connecting to database: %w", err)
		}
		s, err := db.NewStore(ctx, db.NewDB(sqldb, cfg.Debug))
		if err != nil {
			sqldb.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

func ingestFile(ctx context.Context, p *rag.Pipeline, docName, filePath string) {
	pages, err := parser.ParsePages(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Str("document", docName).Int("pages", len(pages)).Msg("Parsed document")

	result, err := p.IngestDocument(ctx, docName, pages, func(done, total int) {
		log.Info().Msgf("Embedded page %d/%d (%d%%)", done, total, done*100/total)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	for _, e := range result.Errors {
		log.Warn().Err(e).Msg("Chunk not stored")
	}
	helper.PrettyPrint(os.Stdout, result)
}

func printPages(filePath string) {
	pages, err := parser.ParsePages(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	helper.PrettyPrint(os.Stdout, pages)
}

func transfer(a *app, exportPath, importPath, key, docName string) {
	m, ok := a.backend.(*chromemdb.VectorDBManager)
	if !ok {
		log.Fatal().Str("backend", a.cfg.Database.Backend).Msg("Export and import need the chromem backend")
	}

	var ids []string
	if docName != "" {
		ids = append(ids, table.ID(docName))
	}

	if importPath != "" {
		if err := m.Import(importPath, key, ids...); err != nil {
			log.Fatal().Err(err).Msg("Error importing")
		}
		log.Info().Str("file", importPath).Msg("Imported tables")
	}
	if exportPath != "" {
		if err := m.Export(exportPath, key, ids...); err != nil {
			log.Fatal().Err(err).Msg("Error exporting")
		}
		log.Info().Str("file", exportPath).Msg("Exported tables")
	}
}
