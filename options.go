// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package h5writer

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/scigolib/h5writer/internal/utils"
)

// FileOption configures a File during creation.
// This follows the Functional Options Pattern.
//
// Example:
//
//	f, err := h5writer.Create("data.h5", h5writer.CreateTruncate,
//	    h5writer.WithFileVersion(1),
//	    h5writer.WithLogger(logger),
//	)
type FileOption func(*fileConfig) error

type fileConfig struct {
	version    int
	modTime    time.Time
	logger     logrus.FieldLogger
	registerer prometheus.Registerer
	codec      Codec
}

func defaultFileConfig() fileConfig {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	quiet.SetLevel(logrus.WarnLevel)

	return fileConfig{
		version: 2,
		modTime: time.Now(),
		logger:  quiet,
		codec:   DeflateCodec{},
	}
}

// WithFileVersion selects the file format.
//
//   - 2 (default): superblock v2, version 2 object headers, groups as link
//     messages
//   - 1: superblock v0, version 1 object headers, groups as symbol tables
//     (local heap, B-tree and symbol-table node), readable by HDF5 1.6
func WithFileVersion(version int) FileOption {
	return func(c *fileConfig) error {
		if version != 1 && version != 2 {
			return utils.SchemaError("file version", "unsupported file version %d (want 1 or 2)", version)
		}
		c.version = version
		return nil
	}
}

// WithModTime sets the modification time stamped into object headers.
// Defaults to the creation time of the File.
func WithModTime(t time.Time) FileOption {
	return func(c *fileConfig) error {
		c.modTime = t
		return nil
	}
}

// WithLogger routes the writer's debug log to logger.
func WithLogger(logger logrus.FieldLogger) FileOption {
	return func(c *fileConfig) error {
		if logger == nil {
			return utils.SchemaError("logger", "nil logger")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics registers the writer's collectors with reg.
// Files sharing a registerer share the collectors.
func WithMetrics(reg prometheus.Registerer) FileOption {
	return func(c *fileConfig) error {
		c.registerer = reg
		return nil
	}
}

// WithCodec replaces the compression codec used for chunks with a
// compression level above 0.
func WithCodec(codec Codec) FileOption {
	return func(c *fileConfig) error {
		if codec == nil {
			return utils.SchemaError("codec", "nil codec")
		}
		c.codec = codec
		return nil
	}
}

// VariableOption configures a variable declared with AddVariable.
type VariableOption func(*variableConfig)

type variableConfig struct {
	chunks   []uint64
	level    int
	fill     interface{}
	zeroFill bool
	strLen   int
	members  []Member
}

// WithChunks stores the variable as chunks of the given shape. Each extent
// must be between 1 and the variable's extent in that dimension.
//
// Example:
//
//	g.AddVariable("temp", h5writer.Float32, []uint64{100, 100},
//	    h5writer.WithChunks(10, 10),
//	    h5writer.WithCompression(6),
//	)
func WithChunks(dims ...uint64) VariableOption {
	return func(c *variableConfig) {
		c.chunks = append([]uint64{}, dims...)
	}
}

// WithCompression sets the deflate level, 0 (none) to 9. Compression
// requires chunking.
func WithCompression(level int) VariableOption {
	return func(c *variableConfig) {
		c.level = level
	}
}

// WithFill sets the fill value. It must be a single element of the
// variable's type.
func WithFill(v interface{}) VariableOption {
	return func(c *variableConfig) {
		c.fill = v
	}
}

// WithDefaultFill declares the type default (zero) as the fill value.
// Without WithFill or WithDefaultFill the variable has no defined fill.
func WithDefaultFill() VariableOption {
	return func(c *variableConfig) {
		c.zeroFill = true
	}
}

// WithStringLength sets the field width of a FixedString variable.
func WithStringLength(n int) VariableOption {
	return func(c *variableConfig) {
		c.strLen = n
	}
}

// WithMembers sets the fields of a Compound variable. Without it a
// compound has the dimension-list pair ("dataset" reference, "dimension"
// int32).
func WithMembers(members ...Member) VariableOption {
	return func(c *variableConfig) {
		c.members = append([]Member{}, members...)
	}
}
