package canvas

import "dash_go/internal/domain"

// RowMargin is the gap, in grid units, kept between adjacent widgets and
// between packed rows.
const RowMargin = 1

// Pack lays out widget sizes left-to-right, top-to-bottom in the given
// order: a shelf per row, wrapping when the next widget would cross the
// canvas width, each new row starting below the lowest widget placed so
// far. When pageHeight is positive and a widget would straddle a page
// boundary, the cursor skips to the top of the next page so batch-added
// widgets never bridge visual pages. startY offsets the whole packing,
// letting callers append below existing content.
//
// Pack is deterministic and never overlaps: identical inputs produce
// identical positions.
func Pack(sizes []domain.GridSize, widthUnits, pageHeightUnits, startY int) []domain.GridPos {
	positions := make([]domain.GridPos, 0, len(sizes))

	x := 0
	y := startY
	bottom := startY

	for _, size := range sizes {
		// Wrap to a new row. A widget wider than the canvas still
		// goes at x=0, overflowing to the right.
		if x > 0 && x+size.W > widthUnits {
			x = 0
			y = bottom + RowMargin
		}

		if pageHeightUnits > 0 {
			pageEnd := ((y / pageHeightUnits) + 1) * pageHeightUnits
			if y+size.H > pageEnd && size.H <= pageHeightUnits {
				y = pageEnd
				x = 0
			}
		}

		positions = append(positions, domain.GridPos{X: x, Y: y})

		if b := y + size.H; b > bottom {
			bottom = b
		}
		x += size.W + RowMargin
	}

	return positions
}
