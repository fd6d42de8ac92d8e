// Command sfsutil is a thin, non-interactive front end over the sfs
// operation surface. It is not a pretty-printing, interactive viewer:
// each subcommand mounts the image, performs exactly one operation, and
// unmounts.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moneytech/sfs"
)

func main() {
	invocationID := uuid.New().String()
	log := logrus.WithField("invocation", invocationID)

	root := &cobra.Command{
		Use:          "sfsutil",
		Short:        "Mount and operate on a single SFS image file",
		SilenceUsage: true,
	}

	root.AddCommand(
		statCmd(log),
		lsCmd(log),
		mkdirCmd(log),
		rmCmd(log),
		readCmd(log),
		writeCmd(log),
		resizeCmd(log),
	)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("sfsutil failed")
		os.Exit(1)
	}
}

func withVolume(log *logrus.Entry, image string, fn func(v *sfs.Volume) error) error {
	v, err := sfs.Mount(image)
	if err != nil {
		return err
	}
	defer v.Unmount()
	return fn(v)
}

func statCmd(log *logrus.Entry) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <image> <path>",
		Short: "Print an entry's kind, size, and timestamp",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				st, err := v.Stat(args[1])
				if err != nil {
					return err
				}
				fmt.Printf("kind=0x%02x size=%d time=%d\n", byte(st.Kind), st.Size, st.Time)
				return nil
			})
		},
	}
}

func lsCmd(log *logrus.Entry) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> <path>",
		Short: "List the direct children of a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				names, err := v.List(args[1])
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			})
		},
	}
}

func mkdirCmd(log *logrus.Entry) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <image> <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				return v.Mkdir(args[1])
			})
		},
	}
}

func rmCmd(log *logrus.Entry) *cobra.Command {
	var recursive bool
	c := &cobra.Command{
		Use:   "rm <image> <path>",
		Short: "Delete a file, or a directory with --recursive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				if recursive {
					return v.Rmdir(args[1])
				}
				return v.Delete(args[1])
			})
		},
	}
	c.Flags().BoolVar(&recursive, "recursive", false, "remove a directory instead of a file")
	return c
}

func readCmd(log *logrus.Entry) *cobra.Command {
	var offset, size int64
	c := &cobra.Command{
		Use:   "read <image> <path>",
		Short: "Read a byte range of a file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				buf := make([]byte, size)
				n, err := v.Read(args[1], buf, int(size), offset)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(buf[:n])
				return err
			})
		},
	}
	c.Flags().Int64Var(&offset, "offset", 0, "byte offset to read from")
	c.Flags().Int64Var(&size, "size", 0, "number of bytes to read")
	return c
}

func writeCmd(log *logrus.Entry) *cobra.Command {
	var offset int64
	c := &cobra.Command{
		Use:   "write <image> <path>",
		Short: "Write stdin into a file's existing extent at an offset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				n, err := v.Write(args[1], data, len(data), offset)
				if err != nil {
					return err
				}
				fmt.Printf("wrote %d bytes\n", n)
				return nil
			})
		},
	}
	c.Flags().Int64Var(&offset, "offset", 0, "byte offset to write at")
	return c
}

func resizeCmd(log *logrus.Entry) *cobra.Command {
	return &cobra.Command{
		Use:   "resize <image> <path> <new-length>",
		Short: "Grow or shrink a file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return err
			}
			return withVolume(log, args[0], func(v *sfs.Volume) error {
				return v.Resize(args[1], n)
			})
		},
	}
}
