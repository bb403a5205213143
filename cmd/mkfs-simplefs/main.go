package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/pranjas/simplefs-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	blockSize uint32
	inodePerc int
	bigEndian bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "mkfs-simplefs <device-or-image-path>",
	Short: "Format a file or block device with a SimpleFS image",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().Uint32Var(&blockSize, "block-size", simplefs.DefaultBlockSize, "block size in bytes")
	rootCmd.Flags().IntVar(&inodePerc, "inode-percent", simplefs.DefaultInodePercent, "percentage of blocks reserved for inodes")
	rootCmd.Flags().BoolVar(&bigEndian, "big-endian", false, "force a big-endian image regardless of host byte order")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("SIMPLEFS")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("block-size", rootCmd.Flags().Lookup("block-size"))
	_ = viper.BindPFlag("inode-percent", rootCmd.Flags().Lookup("inode-percent"))
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]

	logLevel := zerolog.InfoLevel
	if verbose {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(logLevel).With().Timestamp().Logger()

	isBlock, err := simplefs.IsBlockDevice(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !isBlock {
		isRegular, rerr := simplefs.IsRegularFile(path)
		if rerr != nil {
			return fmt.Errorf("%s: %w", path, rerr)
		}
		if !isRegular {
			return fmt.Errorf("%s: not a block device or regular file: %w", path, syscall.ENODEV)
		}
	}

	opts := []simplefs.FormatOption{
		simplefs.WithBlockSize(uint32(viper.GetInt("block-size"))),
		simplefs.WithInodePercent(viper.GetInt("inode-percent")),
		simplefs.WithFormatLogger(log),
	}
	if cmd.Flags().Changed("big-endian") {
		opts = append(opts, simplefs.WithBigEndian(bigEndian))
	}

	if err := simplefs.Format(path, opts...); err != nil {
		return err
	}
	fmt.Printf("formatted %s\n", path)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mkfs-simplefs:", err)
		switch {
		case errors.Is(err, simplefs.ErrNoSpace):
			os.Exit(28) // ENOSPC
		case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENODEV):
			os.Exit(19) // ENODEV
		case errors.Is(err, simplefs.ErrIo):
			os.Exit(5) // EIO
		default:
			os.Exit(1)
		}
	}
}
