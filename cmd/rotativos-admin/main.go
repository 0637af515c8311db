package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/forgo/rotativos/api/internal/config"
	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/jobs"
	"github.com/forgo/rotativos/api/internal/repository"
	"github.com/forgo/rotativos/api/internal/rules"
	"github.com/forgo/rotativos/api/internal/service"
)

const usage = `Usage: rotativos-admin <command> [flags]

Commands:
  seed-rules       Load rule configs from a YAML file
  recalculate      Recompute stored balances from approved rotations
  purge-waitlist   Drop every waiting list entry of a season
`

// actorID is recorded as the actor of audited admin operations
const actorID = "rotativos-admin"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "seed-rules":
		err = seedRules(os.Args[2:])
	case "recalculate":
		err = recalculate(os.Args[2:])
	case "purge-waitlist":
		err = purgeWaitlist(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func seedRules(args []string) error {
	fs := flag.NewFlagSet("seed-rules", flag.ExitOnError)
	file := fs.String("file", "./config/rules.yaml", "Path to the rules YAML file")
	overwrite := fs.Bool("overwrite", false, "Overwrite configs that are already stored")
	dryRun := fs.Bool("dry-run", false, "Parse and validate the file without writing")
	_ = fs.Parse(args)

	catalog := rules.DefaultCatalog(rules.Deps{})
	records, err := rules.LoadSeedFile(*file, catalog)
	if err != nil {
		return err
	}
	if *dryRun {
		fmt.Printf("%s: %d rule configs OK\n", *file, len(records))
		return nil
	}

	ctx := context.Background()
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	configRepo := repository.NewRuleConfigRepository(db)
	svc := service.NewRuleConfigService(service.RuleConfigServiceConfig{
		ConfigRepo: configRepo,
		Engine:     rules.NewEngine(rules.EngineConfig{Catalog: catalog, Configs: configRepo}),
		Auditor:    service.NewStoreAuditor(repository.NewAuditRepository(db)),
	})

	n, err := svc.Seed(ctx, records, *overwrite)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("Rule config store already populated; nothing written (use -overwrite)")
		return nil
	}
	fmt.Printf("Wrote %d rule configs from %s\n", n, *file)
	return nil
}

func recalculate(args []string) error {
	fs := flag.NewFlagSet("recalculate", flag.ExitOnError)
	seasonID := fs.String("season", "", "Season to recalculate (default: every active season)")
	outputJSON := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(args)

	ctx := context.Background()
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	eventRepo := repository.NewEventRepository(db)
	balances := service.NewBalanceService(service.BalanceServiceConfig{
		BalanceRepo:  repository.NewBalanceRepository(db),
		EventRepo:    eventRepo,
		RotativoRepo: repository.NewRotativoRepository(db),
		MemberRepo:   repository.NewMemberRepository(db),
		Auditor:      service.NewStoreAuditor(repository.NewAuditRepository(db)),
	})
	reconciler := jobs.NewBalanceReconciler(jobs.BalanceReconcilerConfig{
		Seasons:  eventRepo,
		Balances: balances,
	})

	start := time.Now()
	var report *jobs.ReconcileReport
	if *seasonID != "" {
		report, err = reconciler.RunSeason(ctx, *seasonID)
	} else {
		report, err = reconciler.RunOnce(ctx)
	}
	if err != nil {
		return err
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Println("Balance Recalculation")
	fmt.Println("=====================")
	fmt.Printf("Seasons:  %d\n", report.Seasons)
	fmt.Printf("Rows:     %d\n", report.Rows)
	fmt.Printf("Drifted:  %d\n", report.Drifted)
	fmt.Printf("Failed:   %d\n", report.Failed)
	fmt.Printf("Took:     %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func purgeWaitlist(args []string) error {
	fs := flag.NewFlagSet("purge-waitlist", flag.ExitOnError)
	seasonID := fs.String("season", "", "Season whose waiting lists are dropped (required)")
	_ = fs.Parse(args)

	if *seasonID == "" {
		return fmt.Errorf("-season is required")
	}

	ctx := context.Background()
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc := service.NewWaitingListService(service.WaitingListServiceConfig{
		QueueRepo:    repository.NewWaitingListRepository(db),
		RotativoRepo: repository.NewRotativoRepository(db),
		Auditor:      service.NewStoreAuditor(repository.NewAuditRepository(db)),
	})
	n, err := svc.Purge(ctx, *seasonID, actorID)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d waiting list entries from %s\n", n, *seasonID)
	return nil
}

// connect opens the database named by the server's environment variables
func connect(ctx context.Context) (*database.SurrealDB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
