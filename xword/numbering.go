package xword

// Entry is the starting square of an across or down entry and the clue
// number assigned to it.
type Entry struct {
	Number int `json:"number"`
	Row    int `json:"row"`
	Col    int `json:"col"`
}

// Numbering lists the across and down entry starts of a grid in row-major
// scan order. Position i of Across is meant to match the i-th across clue.
type Numbering struct {
	Across []Entry `json:"across"`
	Down   []Entry `json:"down"`
}

// Number derives clue numbers from grid topology. black has one flag per
// cell in row-major order; when its length is not width*height the grid has
// no usable shape and the result is empty.
//
// A fillable cell starts an entry when the previous cell in that direction is
// blocked (or off the grid) and the next one is fillable, so every entry is at
// least two cells long. Numbers come from one counter shared by both
// directions, bumped once per numbered cell.
func Number(width, height int, black []bool) Numbering {
	var n Numbering
	// Each side is bounded by the length first so width*height cannot overflow.
	n0 := len(black)
	if width <= 0 || height <= 0 || width > n0 || height > n0 || width*height != n0 {
		return n
	}

	open := func(row, col int) bool {
		if row < 0 || row >= height || col < 0 || col >= width {
			return false
		}
		return !black[row*width+col]
	}

	next := 1
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			if !open(row, col) {
				continue
			}
			across := !open(row, col-1) && open(row, col+1)
			down := !open(row-1, col) && open(row+1, col)
			if !across && !down {
				continue
			}
			e := Entry{Number: next, Row: row, Col: col}
			if across {
				n.Across = append(n.Across, e)
			}
			if down {
				n.Down = append(n.Down, e)
			}
			next++
		}
	}
	return n
}

// NumberCells is Number over a slice of cells.
func NumberCells(width, height int, cells []Cell) Numbering {
	black := make([]bool, len(cells))
	for i, c := range cells {
		black[i] = c.Black
	}
	return Number(width, height, black)
}

// Labels returns the clue number of every cell in row-major order, 0 for
// cells that start no entry.
func (n Numbering) Labels(width, height int) []int {
	if width <= 0 || height <= 0 {
		return nil
	}
	labels := make([]int, width*height)
	for _, list := range [][]Entry{n.Across, n.Down} {
		for _, e := range list {
			if e.Row < height && e.Col < width {
				labels[e.Row*width+e.Col] = e.Number
			}
		}
	}
	return labels
}

// Numbers returns just the clue numbers of a list of entries.
func Numbers(entries []Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Number
	}
	return out
}

func (n Numbering) clone() Numbering {
	return Numbering{
		Across: append([]Entry(nil), n.Across...),
		Down:   append([]Entry(nil), n.Down...),
	}
}
