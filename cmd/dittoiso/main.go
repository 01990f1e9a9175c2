package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/pkg/config"
	"github.com/marmos91/dittoiso/pkg/server"
	"github.com/marmos91/dittoiso/pkg/storage"
)

const usage = `DittoISO - read-only FTP server for ISO 9660 images

Usage:
  dittoiso <command> [flags]

Commands:
  start   Start the server
  init    Write a default configuration file
  ls      List a directory of the configured image
  stat    Show the metadata of one entry
  cat     Write the content of a file to stdout

Run 'dittoiso <command> -h' for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "start":
		err = runStart(args)
	case "init":
		err = runInit(args)
	case "ls":
		err = runLs(args)
	case "stat":
		err = runStat(args)
	case "cat":
		err = runCat(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittoiso/config.yaml)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	fmt.Println("DittoISO - read-only FTP server for ISO 9660 images")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsResult := config.InitializeMetrics(cfg)

	img, err := config.CreateImage(ctx, &cfg.Image, metricsResult)
	if err != nil {
		return err
	}
	defer func() {
		if err := img.Close(); err != nil {
			logger.Error("Error releasing image resources: %v", err)
		}
	}()

	adapters, err := config.CreateAdapters(cfg, metricsResult.FTPMetrics)
	if err != nil {
		return err
	}

	srv := server.New(img.Factory, server.Config{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsServer:   metricsResult.Server,
	})
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Where to write the file (default: $XDG_CONFIG_HOME/dittoiso/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	_ = fs.Parse(args)

	path := *configPath
	if path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

// openSession loads the configuration and opens one image session for the
// inspection commands. Logs go to stderr so they never mix with output.
func openSession(ctx context.Context, name string, args []string, extra func(fs *flag.FlagSet)) (storage.Backend, string, func(), error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if extra != nil {
		extra(fs)
	}
	_ = fs.Parse(args)

	target := "/"
	if fs.NArg() > 0 {
		target = fs.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, "", nil, err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, "stderr"); err != nil {
		return nil, "", nil, err
	}

	img, err := config.CreateImage(ctx, &cfg.Image, nil)
	if err != nil {
		return nil, "", nil, err
	}

	backend, err := img.Factory.NewSession(ctx)
	if err != nil {
		_ = img.Close()
		return nil, "", nil, err
	}

	cleanup := func() {
		_ = backend.Close()
		_ = img.Close()
	}
	return backend, target, cleanup, nil
}

func runLs(args []string) error {
	ctx := context.Background()

	backend, target, cleanup, err := openSession(ctx, "ls", args, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := backend.List(ctx, target)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		md := e.Metadata
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t %s\t %s\t\n",
			md.FileMode(), md.UID, md.GID, md.Size, md.ModTime.Format(time.DateTime), e.Name)
	}
	return w.Flush()
}

func runStat(args []string) error {
	ctx := context.Background()

	backend, target, cleanup, err := openSession(ctx, "stat", args, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	md, err := backend.Stat(ctx, target)
	if err != nil {
		return err
	}

	fmt.Printf("  Path: %s\n", target)
	fmt.Printf("  Name: %s\n", path.Base(path.Clean("/"+target)))
	fmt.Printf("  Kind: %s\n", md.Kind)
	fmt.Printf("  Size: %d\n", md.Size)
	fmt.Printf("  Mode: %s (%04o)\n", md.FileMode(), md.Mode.Perm())
	fmt.Printf(" Owner: %d/%d\n", md.UID, md.GID)
	fmt.Printf("Modify: %s\n", md.ModTime.Format(time.RFC3339))

	if md.IsSymlink() {
		if link, err := backend.Readlink(ctx, target); err == nil {
			fmt.Printf("Target: %s\n", link)
		}
	}
	return nil
}

func runCat(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var offset, length int64
	backend, target, cleanup, err := openSession(ctx, "cat", args, func(fs *flag.FlagSet) {
		fs.Int64Var(&offset, "offset", 0, "Start reading at this byte offset")
		fs.Int64Var(&length, "length", -1, "Read at most this many bytes (-1 reads to the end)")
	})
	if err != nil {
		return err
	}
	defer cleanup()

	rc, err := backend.RetrieveRange(ctx, target, offset, length)
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(os.Stdout, rc)
	return err
}
