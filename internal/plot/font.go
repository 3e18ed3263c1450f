package plot

import (
	"image"
	"image/color"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// glyphPatterns contains 3x5 pixel patterns for letters and the symbols
// axis labels need. Each glyph is represented as 5 rows of 3 bits.
var glyphPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'*': {0b000, 0b101, 0b010, 0b101, 0b000},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	',': {0b000, 0b000, 0b000, 0b010, 0b100},
	'/': {0b001, 0b001, 0b010, 0b100, 0b100},
	':': {0b000, 0b010, 0b000, 0b010, 0b000},
	'(': {0b001, 0b010, 0b010, 0b010, 0b001},
	')': {0b100, 0b010, 0b010, 0b010, 0b100},
	'=': {0b000, 0b111, 0b000, 0b111, 0b000},
	'%': {0b101, 0b001, 0b010, 0b100, 0b101},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// glyph returns the 3x5 pixel pattern for a character. Lowercase letters
// reuse the uppercase patterns; unsupported characters come out blank.
func glyph(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := glyphPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// textWidth returns the pixel width of text drawn at the given scale.
func textWidth(text string, scale int) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return n*4*scale - scale
}

// drawText draws text with its top-left corner at (x, y).
func drawText(img *image.RGBA, text string, x, y int, col color.Color, scale int) {
	if scale < 1 {
		scale = 1
	}
	bounds := img.Bounds()
	for i, ch := range []rune(text) {
		pattern := glyph(ch)
		charX := x + i*4*scale
		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if pattern[row]&(1<<(2-c)) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						px := charX + c*scale + dx
						py := y + row*scale + dy
						if px >= bounds.Min.X && px < bounds.Max.X &&
							py >= bounds.Min.Y && py < bounds.Max.Y {
							img.Set(px, py, col)
						}
					}
				}
			}
		}
	}
}

// drawTextCentered draws text centered on (cx, cy).
func drawTextCentered(img *image.RGBA, text string, cx, cy int, col color.Color, scale int) {
	drawText(img, text, cx-textWidth(text, scale)/2, cy-5*scale/2, col, scale)
}

// drawTextVertical draws text rotated a quarter turn counterclockwise,
// reading bottom to top, centered on (cx, cy). Used for y-axis labels.
func drawTextVertical(img *image.RGBA, text string, cx, cy int, col color.Color, scale int) {
	if scale < 1 {
		scale = 1
	}
	runes := []rune(text)
	height := textWidth(text, scale)
	startX := cx - 5*scale/2
	bottom := cy + height/2
	bounds := img.Bounds()

	for i, ch := range runes {
		pattern := glyph(ch)
		// Advancing through the text moves up the image; the first
		// character sits at the bottom.
		charTop := bottom - i*4*scale - 3*scale
		// The quarter turn maps a cell at (col, row) to (row, 2-col).
		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if pattern[row]&(1<<(2-c)) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						px := startX + row*scale + dx
						py := charTop + (2-c)*scale + dy
						if px >= bounds.Min.X && px < bounds.Max.X &&
							py >= bounds.Min.Y && py < bounds.Max.Y {
							img.Set(px, py, col)
						}
					}
				}
			}
		}
	}
}
