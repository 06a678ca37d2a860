package main

import (
	"os"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/create"
	"github.com/dargueta/fvkit/extract"
	"github.com/dargueta/fvkit/image"
	"github.com/dargueta/fvkit/utilities/compression"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var scanFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "start",
		Usage: "Offset in the image to start scanning at",
		Value: "0",
	},
	&cli.StringFlag{
		Name:  "length",
		Usage: "Number of bytes to scan after the start offset (default: to the end)",
	},
	&cli.StringFlag{
		Name:  "stride",
		Usage: "Distance between offsets checked for a volume signature",
		Value: "8",
	},
	&cli.IntFlag{
		Name:  "max-depth",
		Usage: "How deeply nested volumes and compressed sections are expanded",
		Value: 16,
	},
	xzPathFlag,
}

var xzPathFlag = &cli.StringFlag{
	Name:    "xz-path",
	Usage:   "The xz executable used for LZMA compression",
	Value:   compression.DefaultXZPath,
	EnvVars: []string{"FVKIT_XZ_PATH"},
}

func main() {
	cli := cli.App{
		Name:  "fvkit",
		Usage: "Take apart and put together UEFI firmware volumes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log debug messages"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
		},
		Before: configureLogging,
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Write every volume, file, and section of an image to a directory",
				Action:    extractImage,
				ArgsUsage: "IMAGE_FILE",
				Flags: append(
					[]cli.Flag{
						&cli.StringFlag{
							Name:    "output-dir",
							Aliases: []string{"o"},
							Usage:   "Directory to extract into",
							Value:   "extracted",
						},
					},
					scanFlags...,
				),
			},
			{
				Name:      "list",
				Usage:     "Print the structure of an image",
				Action:    listImage,
				ArgsUsage: "IMAGE_FILE",
				Flags:     scanFlags,
			},
			{
				Name:      "create",
				Usage:     "Build a firmware volume from a manifest",
				Action:    createVolume,
				ArgsUsage: "MANIFEST_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Where to write the volume",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "size",
						Usage:    "Size of the volume, e.g. 0x100000 or 1MiB",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "compressed-size",
						Usage: "Put the files in an LZMA-compressed inner volume of this size",
					},
					xzPathFlag,
				},
			},
		},
	}

	err := cli.Run(os.Args)
	if err != nil {
		logrus.Fatalf("fatal error: %s", err.Error())
	}
}

func configureLogging(context *cli.Context) error {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case context.Bool("verbose"):
		logrus.SetLevel(logrus.DebugLevel)
	case context.Bool("quiet"):
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// singleArgument returns the command's only positional argument.
func singleArgument(context *cli.Context, what string) (string, error) {
	if context.NArg() != 1 {
		return "", cli.Exit("expected exactly one argument: "+what, 2)
	}
	return context.Args().First(), nil
}

// imageOptions collects the scanning flags shared by extract and list.
func imageOptions(context *cli.Context) (image.Options, error) {
	start, err := parseSize(context.String("start"))
	if err != nil {
		return image.Options{}, err
	}
	length, err := parseOptionalSize(context.String("length"))
	if err != nil {
		return image.Options{}, err
	}
	stride, err := parseSize(context.String("stride"))
	if err != nil {
		return image.Options{}, err
	}

	return image.Options{
		Start:       start,
		Length:      length,
		Stride:      int(stride),
		MaxDepth:    context.Int("max-depth"),
		Compression: compression.NewRegistry(context.String("xz-path")),
		Log:         logrus.NewEntry(logrus.StandardLogger()),
	}, nil
}

func loadImage(context *cli.Context) (*image.Image, error) {
	imagePath, err := singleArgument(context, "IMAGE_FILE")
	if err != nil {
		return nil, err
	}
	options, err := imageOptions(context)
	if err != nil {
		return nil, err
	}
	return image.ReadFile(imagePath, options)
}

func extractImage(context *cli.Context) error {
	img, err := loadImage(context)
	if err != nil {
		return err
	}

	extractor := extract.New(extract.NewDirEmitter(context.String("output-dir")))
	if err = extractor.ExtractImage(img); err != nil {
		return err
	}
	if diagnostics := img.Diagnostics(); len(diagnostics) > 0 {
		logrus.Warnf("%d problems found, see warnings above", len(diagnostics))
	}
	return nil
}

func listImage(context *cli.Context) error {
	img, err := loadImage(context)
	if err != nil {
		return err
	}
	return printImage(context.App.Writer, img)
}

func createVolume(context *cli.Context) error {
	manifestPath, err := singleArgument(context, "MANIFEST_FILE")
	if err != nil {
		return err
	}

	size, err := parseSize(context.String("size"))
	if err != nil {
		return err
	}
	compressedSize, err := parseOptionalSize(context.String("compressed-size"))
	if err != nil {
		return err
	}

	manifest, err := create.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	volume, err := create.Build(manifest, create.Options{
		Size:           uint64(size),
		CompressedSize: uint64(compressedSize),
		Compression:    compression.NewRegistry(context.String("xz-path")),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(context.String("output"), volume, fvkit.DefaultFileMode)
}
