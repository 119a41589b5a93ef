// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bufdemo streams animated vertex and parameter data through
// a buffer pool on the software device and reports the pool usage.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"cogentcore.org/bufpool/base/logx"
	"cogentcore.org/bufpool/gpu"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "pool config file (.toml, .yaml)",
	}
	framesFlag = &cli.IntFlag{
		Name:  "frames",
		Value: 120,
		Usage: "number of frames to stream",
	}
	vertsFlag = &cli.IntFlag{
		Name:  "verts",
		Value: 1024,
		Usage: "number of vertices per frame",
	}
	objectsFlag = &cli.IntFlag{
		Name:  "objects",
		Value: 16,
		Usage: "number of parameter blocks pushed per frame",
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log info messages",
	}
	veryVerboseFlag = &cli.BoolFlag{
		Name:    "very-verbose",
		Aliases: []string{"vv"},
		Usage:   "log debug messages",
	}
	quietFlag = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "only log errors",
	}
)

func main() {
	app := &cli.App{
		Name:  "bufdemo",
		Usage: "stream data through a GPU buffer pool on the software device",
		Flags: []cli.Flag{verboseFlag, veryVerboseFlag, quietFlag},
		Before: func(c *cli.Context) error {
			logx.UserLevel = logx.LevelFromFlags(c.Bool(veryVerboseFlag.Name), c.Bool(verboseFlag.Name), c.Bool(quietFlag.Name))
			logx.SetDefaultLogger()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "stream frames and print the pool usage",
				Flags:  []cli.Flag{configFlag, framesFlag, vertsFlag, objectsFlag},
				Action: runCommand,
			},
			{
				Name:  "config",
				Usage: "print the default pool config as TOML",
				Action: func(c *cli.Context) error {
					var pc gpu.PoolConfig
					pc.Defaults()
					return pc.WriteTOML(c.App.Writer)
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	pc := &gpu.PoolConfig{}
	pc.Defaults()
	if fn := c.String(configFlag.Name); fn != "" {
		var err error
		pc, err = gpu.OpenPoolConfig(fn)
		if err != nil {
			return err
		}
	}
	opts := demoOptions{
		Frames:  c.Int(framesFlag.Name),
		Verts:   c.Int(vertsFlag.Name),
		Objects: c.Int(objectsFlag.Name),
	}
	res, err := runDemo(c.Context, pc, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "frames: %d, peak: %v\n", res.Frames, res.Peak)
	fmt.Fprintf(c.App.Writer, "final: %v\n", res.Final)
	return nil
}
