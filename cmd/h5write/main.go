// The h5write CLI writes HDF5 files from a TOML schema, and inspects the
// files it writes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/scigolib/h5writer"
	"github.com/scigolib/h5writer/internal/core"
)

var version = "dev"

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "h5write",
		Usage:   "HDF5 file writer",
		Version: version,
	}

	app.Commands = []*cli.Command{
		{
			Name:  "write",
			Usage: "Write an HDF5 file described by a TOML schema",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "schema", Required: true, Usage: "Schema file path", EnvVars: []string{"H5WRITE_SCHEMA"}},
				&cli.StringFlag{Name: "out", Required: true, Usage: "Output HDF5 file path", EnvVars: []string{"H5WRITE_OUT"}},
				&cli.BoolFlag{Name: "exclusive", Usage: "Fail if the output file exists", EnvVars: []string{"H5WRITE_EXCLUSIVE"}},
				&cli.IntFlag{Name: "file-version", Value: 2, Usage: "File format version (1: HDF5 1.6 compatible, 2)", EnvVars: []string{"H5WRITE_FILE_VERSION"}},
				&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"LOG_LEVEL"}},
				&cli.StringFlag{Name: "metrics-file", Usage: "Write Prometheus metrics in text format to this file", EnvVars: []string{"H5WRITE_METRICS_FILE"}},
			},
			Action: func(c *cli.Context) error {
				logLevel, err := logrus.ParseLevel(c.String("log-level"))
				if err != nil {
					return err
				}
				logrus.SetLevel(logLevel)

				schema, err := LoadSchema(c.String("schema"))
				if err != nil {
					return err
				}

				mode := h5writer.CreateTruncate
				if c.Bool("exclusive") {
					mode = h5writer.CreateExclusive
				}

				var reg *prometheus.Registry
				if c.String("metrics-file") != "" {
					reg = prometheus.NewRegistry()
				}

				if err := writeFile(c.String("out"), mode, c.Int("file-version"), schema, reg); err != nil {
					return err
				}

				if reg != nil {
					if err := prometheus.WriteToTextfile(c.String("metrics-file"), reg); err != nil {
						return errors.Wrap(err, "write metrics")
					}
				}
				return nil
			},
		},
		{
			Name:      "checksum",
			Usage:     "Print the lookup3 checksum of a file",
			ArgsUsage: "<file>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expected one file argument")
				}
				data, err := os.ReadFile(c.Args().First())
				if err != nil {
					return errors.Wrap(err, "read file")
				}
				fmt.Fprintf(c.App.Writer, "%08x  %s\n", core.Checksum(data), c.Args().First())
				return nil
			},
		},
		{
			Name:      "dump",
			Usage:     "Hex dump a byte range of a file",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "offset", Value: 0, Usage: "Offset in file to start dumping from"},
				&cli.IntFlag{Name: "length", Value: 128, Usage: "Number of bytes to dump"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expected one file argument")
				}
				return dump(c.App.Writer, c.Args().First(), c.Int64("offset"), c.Int("length"))
			},
		},
	}
	return app
}

// writeFile creates path, declares the schema, generates every chunk and
// closes the file.
func writeFile(path string, mode h5writer.CreateMode, fileVersion int, schema *Schema, reg *prometheus.Registry) error {
	opts := []h5writer.FileOption{
		h5writer.WithFileVersion(fileVersion),
		h5writer.WithLogger(logrus.StandardLogger()),
	}
	if reg != nil {
		opts = append(opts, h5writer.WithMetrics(reg))
	}

	f, err := h5writer.Create(path, mode, opts...)
	if err != nil {
		return err
	}

	vars, err := schema.build(f)
	if err != nil {
		_ = f.Abort()
		return err
	}
	if err := f.EndDefine(); err != nil {
		_ = f.Abort()
		return err
	}

	for i := range schema.Variables {
		vs := &schema.Variables[i]
		v := vars[vs.Path]
		if v.TotalElements() == 0 {
			continue
		}
		for _, tile := range v.ChunkTiles() {
			data, err := vs.chunk(v, tile)
			if err != nil {
				_ = f.Abort()
				return errors.Wrapf(err, "generate %s %v", vs.Path, tile.Start)
			}
			if err := v.WriteChunk(tile.Start, data); err != nil {
				_ = f.Abort()
				return err
			}
		}
		logrus.WithField("path", vs.Path).Debugf("wrote %d chunks", v.NumChunks())
	}

	if err := f.Close(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"variables":   len(schema.Variables),
		"fileVersion": f.Version(),
	}).Infof("wrote %s", path)
	return nil
}

// dump writes a hex and ASCII listing of length bytes at offset.
func dump(w io.Writer, path string, offset int64, length int) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Warn("close file")
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat file")
	}
	size := info.Size()
	if offset < 0 || offset >= size {
		return errors.Errorf("invalid offset %d (file size: %d)", offset, size)
	}
	if length < 1 {
		return errors.Errorf("invalid length %d", length)
	}
	if remaining := size - offset; int64(length) > remaining {
		length = int(remaining)
	}

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "read file")
	}

	fmt.Fprintf(w, "Dumping %d bytes at offset 0x%x (%d) of %s (size: %d bytes):\n", n, offset, offset, path, size)
	for i := 0; i < n; i += 16 {
		end := i + 16
		if end > n {
			end = n
		}
		line := buf[i:end]

		fmt.Fprintf(w, "%08x: ", offset+int64(i))
		for j := 0; j < 16; j++ {
			if j < len(line) {
				fmt.Fprintf(w, "%02x ", line[j])
			} else {
				fmt.Fprint(w, "   ")
			}
			if j == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")
		for _, b := range line {
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
	return nil
}
