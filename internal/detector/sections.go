package detector

// Section is a vertical run of dark rows, in frame coordinates.
type Section struct {
	Start  int
	End    int
	Middle int
	Size   int
}

func newSection(start, end int) Section {
	return Section{Start: start, End: end, Middle: (start + end) / 2, Size: end - start + 1}
}

// ExtractSections groups marked rows into sections. Unmarked rows inside a
// section are tolerated until more than maxGap of them follow each other;
// the section then ends on the last marked row before the gap. offset is
// added to every row index.
func ExtractSections(marks []bool, offset int, maxGap int) []Section {
	var sections []Section
	open := false
	start := 0
	gap := 0

	for i, marked := range marks {
		if marked {
			gap = 0
			if !open {
				open = true
				start = i
			}
			continue
		}
		if !open {
			continue
		}
		gap++
		if gap > maxGap {
			sections = append(sections, newSection(offset+start, offset+i-gap))
			open = false
			gap = 0
		}
	}
	if open {
		sections = append(sections, newSection(offset+start, offset+len(marks)-1-gap))
	}
	return sections
}

// Largest returns the section with the greatest size; the topmost one wins a tie.
func Largest(sections []Section) (Section, bool) {
	if len(sections) == 0 {
		return Section{}, false
	}
	best := sections[0]
	for _, s := range sections[1:] {
		if s.Size > best.Size {
			best = s
		}
	}
	return best, true
}
