package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pranjas/simplefs-go"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simplefsctl",
	Short: "Inspect and modify a mounted SimpleFS image",
}

func openArg(arg string) (*simplefs.FileSystem, error) {
	return simplefs.Mount(arg)
}

var lsCmd = &cobra.Command{
	Use:   "ls <image> [path]",
	Short: "List a directory's entries",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openArg(args[0])
		if err != nil {
			return err
		}
		defer fs.Close()

		dirPath := "/"
		if len(args) > 1 {
			dirPath = args[1]
		}
		inodeNo, err := fs.LookupPath(dirPath)
		if err != nil {
			return fmt.Errorf("%s: %w", dirPath, err)
		}
		entries, err := fs.Readdir(inodeNo)
		if err != nil {
			return fmt.Errorf("%s: %w", dirPath, err)
		}
		for _, e := range entries {
			printEntry(fs, e)
		}
		return nil
	},
}

func printEntry(fs *simplefs.FileSystem, e simplefs.DirEntry) {
	f, err := fs.Open(e.InodeNo)
	if err != nil {
		fmt.Printf("d????????? %8s %s %s\n", "-", time.Now().Format("Jan 02 15:04"), e.Name)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		fmt.Println(e.Name)
		return
	}
	typeChar := "-"
	if info.IsDir() {
		typeChar = "d"
	}
	fmt.Printf("%s%s %8d %s %s\n", typeChar, info.Mode().Perm(), info.Size(), info.ModTime().Format("Jan 02 15:04"), e.Name)
}

var catCmd = &cobra.Command{
	Use:   "cat <image> <path>",
	Short: "Print a regular file's contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openArg(args[0])
		if err != nil {
			return err
		}
		defer fs.Close()

		inodeNo, err := fs.LookupPath(args[1])
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		f, err := fs.Open(inodeNo)
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}
		buf := make([]byte, info.Size())
		if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		_, err = os.Stdout.Write(buf)
		return err
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <image> <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createEntry(args[0], args[1], true)
	},
}

var touchCmd = &cobra.Command{
	Use:   "touch <image> <path>",
	Short: "Create an empty regular file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createEntry(args[0], args[1], false)
	},
}

func createEntry(imagePath, targetPath string, dir bool) error {
	fs, err := openArg(imagePath)
	if err != nil {
		return err
	}
	defer fs.Close()

	parentPath := "/"
	name := strings.Trim(targetPath, "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		parentPath = "/" + name[:idx]
		name = name[idx+1:]
	}

	parentInodeNo, err := fs.LookupPath(parentPath)
	if err != nil {
		return fmt.Errorf("%s: %w", parentPath, err)
	}

	var childNo uint64
	if dir {
		childNo, err = fs.Mkdir(parentInodeNo, name)
	} else {
		childNo, err = fs.Create(parentInodeNo, name)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", targetPath, err)
	}
	fmt.Printf("created inode %d at %s\n", childNo, targetPath)
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show superblock information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openArg(args[0])
		if err != nil {
			return err
		}
		defer fs.Close()
		sb := fs.SuperBlock()
		fmt.Println("SimpleFS Image Information")
		fmt.Println("===========================")
		fmt.Printf("Block size:       %d bytes\n", sb.BlockSize)
		fmt.Printf("Total blocks:     %d\n", sb.NrBlocks)
		fmt.Printf("Free blocks:      %d\n", sb.FreeBlocks)
		fmt.Printf("Inodes allocated: %d\n", sb.InodesCount)
		fmt.Printf("Root inode:       %d\n", simplefs.RootInodeNumber)
		return nil
	},
}

func main() {
	rootCmd.AddCommand(lsCmd, catCmd, mkdirCmd, touchCmd, infoCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "simplefsctl:", err)
		os.Exit(1)
	}
}
