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

// Package glimits holds the compile-time bounds that keep the parser
// and builder fully iterative and predictable on adversarial input.
package glimits

const (
	// MaxLevel is the maximum container nesting depth of a true type
	// signature. Nested variants do not count against this limit.
	MaxLevel = 255

	// MaxSignature is the maximum length, in bytes, of a type signature.
	MaxSignature = 65535

	// MaxVarg is the maximum nesting depth accepted by the variadic
	// read/write helpers in a single call.
	MaxVarg = 16

	// MaxVecs is the maximum number of iovecs a single value may hold.
	MaxVecs = 65535

	// InitialBufferSize is the seed size whose FrontShareNum/Den split
	// gives the tail share a writer asks for in its first buffer for a
	// variable-size top-level type. The arena rounds every allocation up
	// to its own geometric step, so that buffer is ReserveStart bytes.
	InitialBufferSize = 2048

	// ReserveStart is the size of the first buffer allocated by the
	// vector arena's reserve policy, doubled geometrically thereafter.
	ReserveStart = 1 << 12

	// ReserveMax is the largest single buffer the arena will allocate.
	ReserveMax = 1 << 31

	// FrontShareNum/FrontShareDen express the fraction of a freshly
	// allocated buffer given to the front (data) region, the rest to
	// the tail (bookkeeping) region.
	FrontShareNum = 8
	FrontShareDen = 10
)
