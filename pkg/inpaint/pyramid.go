package inpaint

// Pyramid is an ordered sequence of progressively downsampled copies of
// an initial masked image. Level 0 is the initial input; every further
// level halves the (even-aligned) dimensions of its predecessor. All
// levels share the channel layout of level 0.
type Pyramid struct {
	levels []*MaskedImage
}

// BuildPyramid constructs the level stack for the given patch radius.
// Downsampling stops before a level whose halved minimum dimension
// would no longer exceed the radius, and after a level in which the
// hole has been averaged away entirely. The result always contains at
// least the initial image.
func BuildPyramid(initial *MaskedImage, radius int) *Pyramid {
	p := &Pyramid{levels: []*MaskedImage{initial}}
	for {
		last := p.levels[len(p.levels)-1]
		if last.Width()/2 <= radius || last.Height()/2 <= radius {
			break
		}
		next := last.Clone()
		next.Downsample2x()
		p.levels = append(p.levels, next)
		if next.CountMasked() == 0 {
			break
		}
	}
	return p
}

// Len returns the number of levels, which is at least 1.
func (p *Pyramid) Len() int { return len(p.levels) }

// Level returns the masked image at level k; level 0 is the finest.
func (p *Pyramid) Level(k int) *MaskedImage { return p.levels[k] }
