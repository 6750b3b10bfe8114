package gf

// Density returns the occupation <c^dagger c> of one orbital from its
// diagonal Green's function. The tail G ~ 1/iw + c2/(iw)^2 is subtracted on
// the mesh and summed analytically, c2 is read off the highest frequency.
func (bm *BlockMesh) Density(orb Orbital) (n float64) {
	var (
		b    = bm.mustBlock(orb.Block)
		i    = orb.Index
		last = bm.mesh.Len() - 1
		wMax = bm.mesh.Omega(last)
		beta = bm.mesh.Beta
	)
	bm.checkIndex(b, Index{Block: orb.Block, I: i, J: i}, 0)
	c2 := -real(b.At(last, i, i)) * wMax * wMax
	for k := 0; k <= last; k++ {
		iw := bm.mesh.IOmega(k)
		n += real(b.At(k, i, i) - 1/iw - complex(c2, 0)/(iw*iw))
	}
	return 0.5 + n/beta - c2*beta/4
}

// TotalDensity sums Density over every orbital of the structure.
func (bm *BlockMesh) TotalDensity() (n float64) {
	for _, orb := range bm.structure.Orbitals() {
		n += bm.Density(orb)
	}
	return
}
