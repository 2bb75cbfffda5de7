package main

import (
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/device"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/payload"
	"github.com/emergingrobotics/go-title/pkg/render"
)

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "titlectl",
		Short: "Title IP control CLI",
		Long: `titlectl drives the title IP accelerator through its UIO register
windows and AXI DMA engine.

Attaching resets the title IP, so loads made by one invocation are gone by
the next. Use render, run, shell or mount for multi-step sequences.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	a.bindFlags(root)
	root.AddCommand(a.commands()...)
	root.AddCommand(
		newScanCommand(a),
		newInfoCommand(a),
		newRunCommand(a),
		newShellCommand(a),
		newMountCommand(a),
		newVersionCommand(),
	)
	return root
}

// commands returns the commands that act on a session. The shell reuses
// them against its held session.
func (a *app) commands() []*cobra.Command {
	return []*cobra.Command{
		newSendCommand(a),
		newParamCommand(a),
		newStatusCommand(a),
		newResetCommand(a),
		newLoadTextCommand(a),
		newLoadPhotoCommand(a),
		newLoadWordsCommand(a, "load-letter-data", "Load the glyph table from a word file", false,
			func(cmd *cobra.Command, s *render.Session, _ control.Preset, b []byte) error {
				return s.LoadLetterData(cmd.Context(), b)
			}),
		newLoadWordsCommand(a, "load-matrix", "Load the letter matrix from a word file", true,
			func(cmd *cobra.Command, s *render.Session, p control.Preset, b []byte) error {
				return s.LoadLetterMatrix(cmd.Context(), p, b)
			}),
		newLoadWordsCommand(a, "load-position", "Load the glyph positions from a word file", false,
			func(cmd *cobra.Command, s *render.Session, _ control.Preset, b []byte) error {
				return s.LoadPosition(cmd.Context(), b)
			}),
		newProcessCommand(a),
		newReadFrameCommand(a),
		newRenderCommand(a),
	}
}

func presetFlag(cmd *cobra.Command) *int {
	return cmd.Flags().IntP("preset", "p", 0, "Resolution preset (0-4)")
}

func scanDevices(cmd *cobra.Command, cfg device.Config) error {
	devices, err := cfg.Scanner().Scan()
	if err != nil {
		return fmt.Errorf("scanning devices: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No UIO devices found")
		return nil
	}
	printf(out, "Found %d UIO device(s):\n", len(devices))
	for _, dev := range devices {
		printf(out, "  [%d] %-16s %s\n", dev.Index, dev.Name, dev.Path)
		for _, m := range dev.Maps {
			printf(out, "        map %s addr=0x%08x size=0x%x\n", m.Name, m.Addr, m.Size)
		}
	}
	return nil
}

func newScanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan for UIO devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return scanDevices(cmd, a.cfg)
		},
	}
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the devices the configuration resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.simulate {
				printf(out, "Simulated title IP\n  Buffer: %d bytes\n  Timeout: %v\n",
					driver.MaxPacketLen, a.cfg.Timeout)
				return nil
			}
			roles := []struct{ role, name string }{
				{"title IP", a.cfg.TitleName},
				{"frame line", a.cfg.TitleFrameName},
				{"DMA", a.cfg.DmaName},
			}
			if a.cfg.DmaInterrupts {
				roles = append(roles,
					struct{ role, name string }{"MM2S line", a.cfg.DmaMM2SName},
					struct{ role, name string }{"S2MM line", a.cfg.DmaS2MMName})
			}
			scanner := a.cfg.Scanner()
			for _, r := range roles {
				dev, err := scanner.Find(r.name)
				if err != nil {
					printf(out, "%-10s %-16s missing\n", r.role, r.name)
					continue
				}
				printf(out, "%-10s %-16s %s", r.role, r.name, dev.Path)
				if len(dev.Maps) > 0 {
					printf(out, " addr=0x%08x size=0x%x", dev.Maps[0].Addr, dev.Maps[0].Size)
				}
				fmt.Fprintln(out)
			}
			printf(out, "%-10s %-16s\n", "buffer", a.cfg.Udmabuf)
			printf(out, "%-10s %v\n", "timeout", a.cfg.Timeout)
			return nil
		},
	}
}

func newSendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <code,arg,target> [payload]",
		Short: "Dispatch a raw request, staging the payload file first",
		Long: `Dispatch a request in the text protocol "code,arg,target".

code is the command code, arg the preset (or the text length for load-text)
and target 0 for a command or 1 for a parameter write. The raw contents of
the payload file are staged in the transfer buffer before dispatch.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
			req, err := control.ParseRequest(args[0])
			if err != nil {
				return err
			}
			var data []byte
			if len(args) == 2 {
				if data, err = os.ReadFile(args[1]); err != nil {
					return err
				}
			}
			return s.Send(cmd.Context(), req, data)
		}),
	}
}

func newParamCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "param <value>",
		Short: "Write the parameter register",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
			v, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return driver.NewErrorWithCause(driver.StatusInvalidArgument, "parameter "+args[0], err)
			}
			return s.SetParameter(cmd.Context(), uint32(v))
		}),
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the frame-done status",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
			fmt.Fprint(cmd.OutOrStdout(), s.Status())
			return nil
		}),
	}
}

func newResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the title IP",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
			return s.Reset(cmd.Context())
		}),
	}
}

func newLoadTextCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-text <text>",
		Short: "Load title text",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
			return s.LoadText(cmd.Context(), args[0])
		}),
	}
}

func readImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := payload.ReadImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func readWordFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	words, err := payload.ReadWords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return payload.EncodeWords(words), nil
}

func writeImageFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := payload.WriteImage(f, img, payload.FormatFromPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func newLoadPhotoCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load-photo <image>",
		Short: "Scale an image to the preset and load it as the background",
		Args:  cobra.ExactArgs(1),
	}
	preset := presetFlag(cmd)
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
		p, err := control.ParsePreset(*preset)
		if err != nil {
			return err
		}
		img, err := readImageFile(args[0])
		if err != nil {
			return err
		}
		return s.LoadPhoto(cmd.Context(), img, p)
	})
	return cmd
}

type wordLoader func(cmd *cobra.Command, s *render.Session, p control.Preset, b []byte) error

func newLoadWordsCommand(a *app, name, short string, withPreset bool, load wordLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Long: short + `.

The file lists 16-bit words, decimal or 0x-prefixed, separated by commas or
whitespace. Text after '#' is a comment.`,
		Args: cobra.ExactArgs(1),
	}
	preset := new(int)
	if withPreset {
		preset = presetFlag(cmd)
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
		p, err := control.ParsePreset(*preset)
		if err != nil {
			return err
		}
		b, err := readWordFile(args[0])
		if err != nil {
			return err
		}
		return load(cmd, s, p, b)
	})
	return cmd
}

func newProcessCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Compose the loaded inputs into a frame",
		Args:  cobra.NoArgs,
	}
	preset := presetFlag(cmd)
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
		p, err := control.ParsePreset(*preset)
		if err != nil {
			return err
		}
		return s.Process(cmd.Context(), p)
	})
	return cmd
}

func newReadFrameCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read-frame <output>",
		Short: "Stream the composed frame back and write it to a file",
		Long: `Stream the composed frame back and write it to a file.

The image format follows the extension (.png, .bmp, .gif). With --raw the
frame is written as it arrived from the title IP.`,
		Args: cobra.ExactArgs(1),
	}
	preset := presetFlag(cmd)
	raw := cmd.Flags().Bool("raw", false, "Write the raw frame bytes")
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
		p, err := control.ParsePreset(*preset)
		if err != nil {
			return err
		}
		b, err := s.ReadFrameBytes(cmd.Context(), p)
		if err != nil {
			return err
		}
		if *raw {
			if err := os.WriteFile(args[0], b, 0o644); err != nil {
				return err
			}
		} else {
			img, err := payload.DecodeFrame(b, p)
			if err != nil {
				return err
			}
			if err := writeImageFile(args[0], img); err != nil {
				return err
			}
		}
		printf(cmd.OutOrStdout(), "%s: %d bytes crc8=0x%02x\n", args[0], len(b), payload.Checksum(b))
		return nil
	})
	return cmd
}

func newRenderCommand(a *app) *cobra.Command {
	var (
		preset                       int
		photo, text, out             string
		letterData, matrix, position string
		param                        uint32
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Reset, load every input, process and read the frame back",
		Args:  cobra.NoArgs,
	}
	f := cmd.Flags()
	f.IntVarP(&preset, "preset", "p", 0, "Resolution preset (0-4)")
	f.StringVar(&photo, "photo", "", "Background image")
	f.StringVar(&text, "text", "", "Title text")
	f.StringVar(&letterData, "letter-data", "", "Glyph table word file")
	f.StringVar(&matrix, "matrix", "", "Letter matrix word file")
	f.StringVar(&position, "position", "", "Glyph position word file")
	f.Uint32Var(&param, "param", 0, "Parameter register value")
	f.StringVarP(&out, "out", "o", "frame.png", "Output image")
	cmd.MarkFlagRequired("photo")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
		p, err := control.ParsePreset(preset)
		if err != nil {
			return err
		}
		job := render.Job{Preset: p, Text: text}
		if job.Photo, err = readImageFile(photo); err != nil {
			return err
		}
		words := []struct {
			path string
			dst  *[]byte
		}{
			{letterData, &job.LetterData},
			{matrix, &job.LetterMatrix},
			{position, &job.Position},
		}
		for _, w := range words {
			if w.path == "" {
				continue
			}
			if *w.dst, err = readWordFile(w.path); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("param") {
			job.Parameter = &param
		}

		frame, err := s.Render(cmd.Context(), job)
		if err != nil {
			return err
		}
		if err := writeImageFile(out, frame); err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "%s: %dx%d\n", out, frame.Bounds().Dx(), frame.Bounds().Dy())
		return nil
	})
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			printf(out, "titlectl version %s\n", Version)
			printf(out, "  Build time: %s\n", BuildTime)
			printf(out, "  Go version: %s\n", GoVersion)
		},
	}
}
