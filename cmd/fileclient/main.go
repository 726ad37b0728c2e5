// Package main provides a command-line client for the file server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/pkg/client"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

const usage = `usage: fileclient [flags] <command> [args]

commands:
  put <dir> <name> <local-file>     upload a file
  get <dir> <name> [out-file]       download a file (stdout by default)
  rm <dir> <name>                   delete a file
  props [-video] <dir> <name>       print file properties as JSON
  snapshot <dir> <name>             request a snapshot
  upload <local-root> <dir/name>... upload several files, report rejections
  purge <dir/name>...               delete several files, report failures

flags:
`

func main() {
	addr := flag.String("addr", client.DefaultTarget("localhost"), "File server address")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-command timeout")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logging.Init(&logging.Config{Level: *logLevel, Format: "text"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c, err := client.Dial(*addr)
	if err != nil {
		logging.Fatal("Failed to connect", logging.String("addr", *addr), logging.Err(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, c, args[0], args[1:]); err != nil {
		logging.Error("Command failed",
			logging.String("command", args[0]),
			logging.String("kind", types.KindOf(err).String()),
			logging.Err(err),
		)
		cancel()
		c.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "put":
		if len(args) != 3 {
			return fmt.Errorf("put needs <dir> <name> <local-file>")
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		if err := c.PutFile(ctx, filePath(args[0], args[1]), data); err != nil {
			return err
		}
		logging.Info("Uploaded", logging.String("local", args[2]), logging.Int("bytes", len(data)))
		return nil

	case "get":
		if len(args) != 2 && len(args) != 3 {
			return fmt.Errorf("get needs <dir> <name> [out-file]")
		}
		data, err := c.GetFile(ctx, filePath(args[0], args[1]))
		if err != nil {
			return err
		}
		if len(args) == 3 {
			return os.WriteFile(args[2], data, 0644)
		}
		_, err = os.Stdout.Write(data)
		return err

	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("rm needs <dir> <name>")
		}
		return c.DeleteFile(ctx, filePath(args[0], args[1]))

	case "props":
		fs := flag.NewFlagSet("props", flag.ContinueOnError)
		video := fs.Bool("video", false, "Request video classification")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return fmt.Errorf("props needs <dir> <name>")
		}
		props, err := c.GetProperties(ctx, filePath(fs.Arg(0), fs.Arg(1)), *video)
		if err != nil {
			return err
		}
		return printJSON(props)

	case "snapshot":
		if len(args) != 2 {
			return fmt.Errorf("snapshot needs <dir> <name>")
		}
		fp, err := c.CreateSnapshot(ctx, filePath(args[0], args[1]))
		if err != nil {
			return err
		}
		fmt.Println(fp)
		return nil

	case "upload":
		if len(args) < 2 {
			return fmt.Errorf("upload needs <local-root> <dir/name>...")
		}
		report, err := c.PutLocalFiles(ctx, args[0], splitPaths(args[1:]))
		if report != nil {
			printJSON(report)
		}
		return err

	case "purge":
		if len(args) == 0 {
			return fmt.Errorf("purge needs <dir/name>...")
		}
		report := c.DeleteAll(ctx, splitPaths(args))
		for i, fp := range report.NotDeleted {
			logging.Warn("Not deleted", logging.Path(fp.Relative()), logging.Err(report.Errors[i]))
		}
		return printJSON(report)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func filePath(dir, name string) types.FilePath {
	return types.FilePath{Directory: dir, Filename: name}
}

// splitPaths turns "a/b/c.txt" into {a/b, c.txt}. A bare name gets ".".
func splitPaths(rels []string) []types.FilePath {
	out := make([]types.FilePath, 0, len(rels))
	for _, rel := range rels {
		dir, name := path.Split(rel)
		if dir == "" {
			dir = "."
		} else if dir != "/" {
			dir = strings.TrimSuffix(dir, "/")
		}
		out = append(out, filePath(dir, name))
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
