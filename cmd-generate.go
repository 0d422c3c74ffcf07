package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/rpcpool/splicegen/config"
	"github.com/rpcpool/splicegen/metadata"
	"github.com/rpcpool/splicegen/progress"
	"github.com/rpcpool/splicegen/script"
	"github.com/rpcpool/splicegen/source"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmd_Generate() *cli.Command {
	return &cli.Command{
		Name:        "generate",
		Usage:       "Generate a reconstruction script for an image.",
		Description: "Discovers shared extents between an image and a set of extracted files already present on the target, and emits a POSIX shell script that reconstructs the image from them.",
		ArgsUsage:   "<image>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "file containing the list of extracted files (defaults to stdin)"},
			&cli.BoolFlag{Name: "null", Aliases: []string{"0"}, Usage: "file list is NUL-delimited instead of newline-delimited"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "path to write the reconstruction script to", Value: "reconstruct.sh"},
			&cli.Int64Flag{Name: "block-size", Aliases: []string{"b"}, Usage: "hash block size", Value: config.DefaultBlockSize},
			&cli.Int64Flag{Name: "min-extent-size", Aliases: []string{"m"}, Usage: "minimum verified extent size", Value: config.DefaultMinExtentSize},
			&cli.Int64Flag{Name: "step-size", Aliases: []string{"s"}, Usage: "no-match advance step size (defaults to min-extent-size)"},
			&cli.Int64Flag{Name: "write-chunk-size", Usage: "I/O buffer size for verification/extension/emission", Value: config.DefaultWriteChunkSize},
			&cli.BoolFlag{Name: "no-ownership", Usage: "skip collecting owner/group metadata"},
			&cli.BoolFlag{Name: "no-acl", Usage: "skip collecting ACL metadata"},
			&cli.BoolFlag{Name: "no-md5", Usage: "skip computing MD5 digests"},
			&cli.BoolFlag{Name: "no-sha256", Usage: "skip computing SHA-256 digests"},
		},
		Action: generateAction,
	}
}

func generateAction(c *cli.Context) error {
	imagePath := c.Args().First()
	if imagePath == "" {
		return fmt.Errorf("generate: missing required <image> argument")
	}
	if ok, err := exists(imagePath); err != nil {
		return fmt.Errorf("generate: checking image path %s: %w", imagePath, err)
	} else if !ok {
		return fmt.Errorf("generate: image %s does not exist", imagePath)
	}
	if isDir, err := isDirectory(imagePath); err != nil {
		return fmt.Errorf("generate: checking image path %s: %w", imagePath, err)
	} else if isDir {
		return fmt.Errorf("generate: image %s is a directory, expected a regular file", imagePath)
	}

	cfg, err := config.New(c.Int64("block-size"), c.Int64("min-extent-size"), c.Int64("step-size"), c.Int64("write-chunk-size"))
	if err != nil {
		return explainPipelineErr("generate", err)
	}

	paths, err := readFileList(c.String("input"), c.Bool("null"))
	if err != nil {
		return err
	}

	metaOpts := metadata.Options{
		Ownership: !c.Bool("no-ownership"),
		ACL:       !c.Bool("no-acl"),
		MD5:       !c.Bool("no-md5"),
		SHA256:    !c.Bool("no-sha256"),
	}

	image, err := source.Open(imagePath)
	if err != nil {
		return explainPipelineErr("generate", err)
	}
	defer image.Close()

	sink, extentSink := sinksFor()
	result, err := runDiscovery(image, paths, cfg, metaOpts, sink, extentSink)
	if err != nil {
		return explainPipelineErr("generate", err)
	}

	if IsVeryVerbose {
		klog.Infof("plan segments:\n%s", spew.Sdump(result.Plan.Segments))
	}

	sink.Notify(progress.Event{Kind: progress.Emitting})
	if err := script.WriteTo(c.String("output"), image, result.Plan, result.Metas); err != nil {
		return err
	}

	klog.Infof("wrote %s (%d segments, image size %d)", c.String("output"), len(result.Plan.Segments), result.Plan.ImageSize)
	return nil
}

// readFileList reads extracted-file paths from listPath, or from stdin when
// listPath is empty, delimited by NUL when null is set and by newline
// otherwise.
func readFileList(listPath string, null bool) ([]string, error) {
	var r io.Reader
	if listPath == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(listPath)
		if err != nil {
			return nil, fmt.Errorf("generate: opening file list %s: %w", listPath, err)
		}
		defer f.Close()
		r = f
	}

	delim := byte('\n')
	if null {
		delim = 0
	}

	var paths []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitOn(delim))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("generate: reading file list: %w", err)
	}
	return paths, nil
}

func splitOn(delim byte) func(data []byte, atEOF bool) (int, []byte, error) {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, delim); i >= 0 {
			return i + 1, data[0:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}
