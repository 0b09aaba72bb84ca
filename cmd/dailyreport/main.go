package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcarowpilot/daily-report-ai/internal/config"
	"github.com/dcarowpilot/daily-report-ai/internal/database"
	"github.com/dcarowpilot/daily-report-ai/internal/ingest"
	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/observe"
	"github.com/dcarowpilot/daily-report-ai/internal/pipeline"
	"github.com/dcarowpilot/daily-report-ai/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dailyreport",
	Short:   "Construction daily reports from notes, voice and photos",
	Long:    "dailyreport captures a site daily report from a web form, voice note and photos, fills structured fields from free text and stores the result.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(bucketTestCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dailyreport", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/dailyreport/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set your projects, API keys, and storage.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Reports:")
		fmt.Printf("  Total: %d\n", stats.TotalReports)
		fmt.Printf("  Projects: %d\n", stats.Projects)
		fmt.Printf("  Days with reports: %d\n", stats.Days)
		fmt.Printf("  With voice note: %d\n", stats.WithAudio)
		if stats.LatestDate != "" {
			fmt.Printf("  Latest: %s\n", stats.LatestDate)
		}
		fmt.Println("\nCollaborators:")
		fmt.Printf("  Extraction: %s\n", enabledLabel(cfg.Extraction.Enabled, cfg.Extraction.Provider))
		fmt.Printf("  Transcription: %s\n", enabledLabel(cfg.Transcription.Enabled, cfg.Transcription.Provider))
		fmt.Printf("  Storage: %s\n", cfg.Storage.Provider)
		return nil
	},
}

func enabledLabel(enabled bool, provider string) string {
	if !enabled {
		return "disabled"
	}
	return provider
}

// --- submit command ---

var (
	draftFlags  ingest.Draft
	notesFile   string
	audioPath   string
	photoPaths  []string
	noExtract   bool
	printRecord bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a daily report from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db, nil)
		if err != nil {
			return err
		}
		session := ingest.NewSession(pipe, cfg.Projects)

		if notesFile != "" {
			data, err := os.ReadFile(notesFile)
			if err != nil {
				return fmt.Errorf("reading notes: %w", err)
			}
			draftFlags.Notes = string(data)
		}
		var photos []media.File
		for _, p := range photoPaths {
			f, err := readMedia(p)
			if err != nil {
				return err
			}
			photos = append(photos, f)
		}

		var voice media.File
		if audioPath != "" {
			if voice, err = readMedia(audioPath); err != nil {
				return err
			}
		}
		if err := loadDraft(session, draftFlags, photos, voice, !noExtract); err != nil {
			return err
		}

		result, err := session.Submit(cmd.Context())
		if result != nil {
			for i, step := range result.Steps {
				fmt.Printf("Step %d/%d: %s\n", i+1, len(result.Steps), step.Name)
				if step.Err != nil {
					fmt.Printf("  Error: %v\n", step.Err)
				} else {
					fmt.Printf("  %s\n", step.Summary)
				}
			}
			for _, n := range result.Notices {
				fmt.Printf("Warning: %s\n", n)
			}
		}
		if err != nil {
			return err
		}

		if printRecord {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Record)
		}
		fmt.Printf("\nSaved report %s. Run 'dailyreport reports show %s' to view it.\n", result.Record.ID, result.Record.ID)
		return nil
	},
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&draftFlags.Date, "date", "", "Report date (YYYY-MM-DD, default today)")
	f.StringVar(&draftFlags.Project, "project", "", "Project name")
	f.StringVar(&draftFlags.Author, "author", "", "Author")
	f.StringVar(&draftFlags.Weather, "weather", "", "Weather")
	f.StringVar(&draftFlags.CrewText, "crew", "", `Crew counts, e.g. "Carpenters:6, Laborers:4"`)
	f.StringVar(&draftFlags.EquipmentText, "equipment", "", `Equipment, e.g. "Excavator:1"`)
	f.StringVar(&draftFlags.ActivitiesText, "activities", "", "Activities separated by ; or newlines")
	f.StringVar(&draftFlags.QuantitiesText, "quantities", "", `Quantities, one per line, e.g. "Concrete CY: 35"`)
	f.StringVar(&draftFlags.SubsText, "subs", "", "Subcontractors present")
	f.StringVar(&draftFlags.Safety, "safety", "", "Safety notes")
	f.StringVar(&draftFlags.IssuesDelays, "issues", "", "Issues and delays")
	f.StringVar(&draftFlags.Notes, "notes", "", "Free-text notes")
	f.StringVar(&notesFile, "notes-file", "", "Read free-text notes from a file")
	f.StringVar(&audioPath, "audio", "", "Voice note file")
	f.StringArrayVar(&photoPaths, "photo", nil, "Photo file (repeatable)")
	f.BoolVar(&noExtract, "no-extract", false, "Do not fill fields from notes and transcript")
	f.BoolVar(&printRecord, "json", false, "Print the saved record as JSON")
}

// loadDraft copies the command-line fields, photos and voice note into the
// session draft, keeping the draft's own ID.
func loadDraft(session *ingest.Session, fields ingest.Draft, photos []media.File, voice media.File, autoExtract bool) error {
	err := session.Update(func(d *ingest.Draft) {
		id := d.ID
		*d = fields
		d.ID = id
		d.Photos = photos
		d.AutoExtract = autoExtract
	})
	if err != nil {
		return fmt.Errorf("preparing draft: %w", err)
	}
	if voice.Empty() {
		return nil
	}
	if err := session.AttachAudio(voice); err != nil {
		return fmt.Errorf("attaching voice note: %w", err)
	}
	return nil
}

func readMedia(path string) (media.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return media.File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return media.File{Name: filepath.Base(path), ContentType: ct, Data: data}, nil
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report form web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		shutdown, err := observe.InitProvider(cmd.Context(), version)
		if err != nil {
			return fmt.Errorf("initialising metrics: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(ctx)
		}()
		metrics := observe.DefaultMetrics()

		pipe, err := pipeline.New(cfg, db, metrics)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		opts := server.Options{
			Store:    db,
			Pipeline: pipe,
			Projects: cfg.Projects,
			Metrics:  metrics,
			Composer: pipeline.NewComposer(cfg),
		}
		if cfg.Storage.Provider == "dir" {
			opts.MediaDir = cfg.MediaDir()
		}

		fmt.Printf("Starting server at http://%s:%d\n", cfg.Server.Host, port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(opts, cfg.Server.Host, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- reports command ---

var (
	reportsProject string
	reportsLimit   int
	showMarkdown   bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse saved reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListReports(cmd.Context(), reportsProject, reportsLimit)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No reports yet. Submit one with: dailyreport submit")
			return nil
		}

		for _, r := range items {
			audio := " "
			if r.HasAudio {
				audio = "*"
			}
			fmt.Printf("  %s  %s  %-24s %s photos:%d %s\n", r.ID, r.Date, r.Project, audio, r.PhotoCount, r.Author)
		}
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a saved report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.GetReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("report %s not found", args[0])
		}

		if showMarkdown {
			doc := pipeline.NewComposer(cfg).Compose(cmd.Context(), r)
			fmt.Print(doc.Markdown())
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	},
}

func init() {
	reportsShowCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "Print a Markdown document with a summary instead of JSON")
	reportsListCmd.Flags().StringVar(&reportsProject, "project", "", "Only list this project")
	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 20, "Maximum number of reports")
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
}

// --- bucket-test command ---

var bucketTestCmd = &cobra.Command{
	Use:   "bucket-test",
	Short: "Write a test object to the audio bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		uploader, err := pipeline.NewUploader(cfg)
		if err != nil {
			return err
		}

		objectPath := fmt.Sprintf("test/%d_hello.txt", time.Now().UTC().Unix())
		url, err := uploader.Put(cmd.Context(), cfg.Storage.AudioBucket, objectPath, []byte("hello audio bucket"), "text/plain")
		if err != nil {
			return fmt.Errorf("audio bucket write failed (check bucket name and storage policies): %w", err)
		}
		fmt.Printf("Audio bucket write OK: %s\n", url)
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Connect(cfg.Database.Driver, cfg.DatabaseDSN())
}
