// Command jp2dump prints the box and marker structure of JPEG 2000 files.
//
// Usage:
//
//	jp2dump [-o file] [-strict] [-max-depth n] [-hex] file...
//
// Failures are logged with glog; pass -logtostderr to see them on the
// terminal and -v=1 for progress messages.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	jp2walk "github.com/mrjoshuak/go-jp2walk"
)

func main() {
	out := flag.String("o", "", "write the dump to `file` instead of standard output")
	strict := flag.Bool("strict", false, "identify files by their full signature instead of the first byte")
	maxDepth := flag.Int("max-depth", jp2walk.DefaultOptions().MaxBoxDepth, "maximum super-box nesting")
	hexDump := flag.Bool("hex", false, "hex dump the contents of unknown boxes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() == 0 {
		flag.Usage()
		glog.Flush()
		os.Exit(2)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			glog.Exitf("creating output: %v", err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)

	opts := &jp2walk.Options{MaxBoxDepth: *maxDepth, StrictSignature: *strict}
	for _, path := range flag.Args() {
		err := dumpFile(bw, path, opts, *hexDump)
		if ferr := bw.Flush(); err == nil {
			err = ferr
		}
		if err != nil {
			glog.Exitf("%v", err)
		}
	}
}

// dumpFile prints the structure of one file.
func dumpFile(w io.Writer, path string, opts *jp2walk.Options, hexDump bool) error {
	size, err := jp2walk.FileSize(path)
	if err != nil {
		return err
	}
	glog.V(1).Infof("walking %s (%d bytes)", path, size)
	fmt.Fprintf(w, "%s: %d bytes\n", path, size)

	d := newDumper(w, hexDump)
	if err := jp2walk.Parse(path, d.box, d.marker, opts); err != nil {
		return err
	}

	if !d.sawBox {
		n, err := jp2walk.TrailingBytesAfterCodestreamEnd(path)
		switch {
		case errors.Is(err, jp2walk.ErrNoEOC):
			fmt.Fprintln(w, "no EOC marker")
		case err != nil:
			return err
		case n > 0:
			fmt.Fprintf(w, "%d byte(s) after the last EOC marker\n", n)
		}
	}
	glog.V(1).Infof("done with %s", path)
	return nil
}
