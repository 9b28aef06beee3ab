// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/gvariant"
)

var (
	typeSig = flag.String("type", "", "GVariant top-level type signature (required)")
	asYAML  = flag.Bool("yaml", false, "print as YAML instead of JSON")
	verbose = flag.Bool("verbose", false, "log a request id for each input")
	cache   = flag.Bool("cache", false, "print each input's siphash cache key instead of decoding it")
	useMmap = flag.Bool("mmap", false, "read regular-file input via mmap instead of a normal read")
)

func main() {
	flag.Parse()
	if *typeSig == "" {
		fmt.Fprintln(os.Stderr, "gvdump: -type is required")
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}

	for _, arg := range args {
		if err := dumpOne(arg); err != nil {
			fmt.Fprintf(os.Stderr, "gvdump: %s: %s\n", arg, err)
			os.Exit(1)
		}
	}
}

func dumpOne(arg string) error {
	data, closer, err := readInput(arg)
	if err != nil {
		return err
	}
	defer closer()

	reqID := uuid.New()
	if *verbose {
		log.Printf("request %s: decoding %d bytes as %q", reqID, len(data), *typeSig)
	}

	if *cache {
		key := siphash.Hash(0, 0, data)
		fmt.Printf("%s  %016x\n", arg, key)
		return nil
	}

	v, err := gvariant.NewFromVecs(*typeSig, [][]byte{data})
	if err != nil {
		return err
	}
	val, err := decode(v)
	if err != nil {
		return err
	}

	js, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return err
	}
	if *asYAML {
		y, err := yaml.JSONToYAML(js)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(y)
		return err
	}
	_, err = fmt.Println(string(js))
	return err
}

func readInput(arg string) (data []byte, closer func(), err error) {
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
		return data, func() {}, err
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, func() {}, err
	}
	if !*useMmap {
		data, err = io.ReadAll(f)
		return data, func() { f.Close() }, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, func() {}, err
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, func() {}, err
	}
	return mapped, func() { unix.Munmap(mapped); f.Close() }, nil
}

// decode walks v from its current cursor and converts one GVariant
// value into a JSON-compatible Go value, recursing through
// containers via Enter/Exit and PeekType/PeekCount rather than
// re-parsing the type signature itself.
func decode(v *gvariant.Variant) (interface{}, error) {
	t := v.PeekType()
	if len(t) == 0 {
		return nil, fmt.Errorf("no value at current position")
	}
	switch t[0] {
	case 'b':
		return v.ReadBool()
	case 'y':
		return v.ReadByte()
	case 'n':
		return v.ReadInt16()
	case 'q':
		return v.ReadUint16()
	case 'i':
		return v.ReadInt32()
	case 'u':
		return v.ReadUint32()
	case 'h':
		return v.ReadHandle()
	case 'x':
		return v.ReadInt64()
	case 't':
		return v.ReadUint64()
	case 'd':
		return v.ReadFloat64()
	case 's':
		return v.ReadString()
	case 'o':
		return v.ReadObjectPath()
	case 'g':
		return v.ReadSignature()
	case 'v':
		if err := v.Enter("v"); err != nil {
			return nil, err
		}
		val, err := decode(v)
		if err != nil {
			return nil, err
		}
		if err := v.Exit("v"); err != nil {
			return nil, err
		}
		return val, nil
	case 'm':
		if err := v.Enter("m"); err != nil {
			return nil, err
		}
		var val interface{}
		if v.PeekCount() == 1 {
			var err error
			val, err = decode(v)
			if err != nil {
				return nil, err
			}
		}
		if err := v.Exit("m"); err != nil {
			return nil, err
		}
		return val, nil
	case 'a':
		if err := v.Enter("a"); err != nil {
			return nil, err
		}
		arr := []interface{}{}
		for v.PeekCount() > 0 {
			val, err := decode(v)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if err := v.Exit("a"); err != nil {
			return nil, err
		}
		return arr, nil
	case '(':
		if err := v.Enter("("); err != nil {
			return nil, err
		}
		arr := []interface{}{}
		for len(v.PeekType()) > 0 {
			val, err := decode(v)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if err := v.Exit("("); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		if err := v.Enter("{"); err != nil {
			return nil, err
		}
		key, err := decode(v)
		if err != nil {
			return nil, err
		}
		val, err := decode(v)
		if err != nil {
			return nil, err
		}
		if err := v.Exit("{"); err != nil {
			return nil, err
		}
		return map[string]interface{}{fmt.Sprint(key): val}, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
}
