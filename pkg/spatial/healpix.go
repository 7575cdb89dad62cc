package spatial

import (
	"fmt"
	"math"
)

// ang2pixRing maps an equatorial coordinate to a ring-ordered HEALPix
// pixel. This is the standard ang2pix_ring projection (Górski et al.,
// ApJ 622, 2005): the sphere splits at |z| = 2/3 into an equatorial belt
// of 4·nside-pixel rings and two polar caps of shrinking rings.
func ang2pixRing(nside int64, raDeg, decDeg float64) (int64, error) {
	if decDeg < -90 || decDeg > 90 {
		return 0, fmt.Errorf("declination out of range: %v", decDeg)
	}
	// Colatitude theta from declination, longitude phi normalized to [0, 2π).
	theta := math.Pi/2 - decDeg*math.Pi/180
	phi := math.Mod(raDeg*math.Pi/180, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}

	z := math.Cos(theta)
	za := math.Abs(z)
	tt := phi / (math.Pi / 2) // in [0,4)

	ns := float64(nside)
	ncap := 2 * nside * (nside - 1)
	npix := 12 * nside * nside

	if za <= 2.0/3.0 {
		// Equatorial belt.
		temp1 := ns * (0.5 + tt)
		temp2 := ns * z * 0.75
		jp := int64(temp1 - temp2) // ascending edge line index
		jm := int64(temp1 + temp2) // descending edge line index

		ir := nside + 1 + jp - jm // ring number counted from z = 2/3
		kshift := 1 - ir&1        // 1 for even rings

		ip := (jp + jm - nside + kshift + 1) / 2
		ip = ip % (4 * nside)
		if ip < 0 {
			ip += 4 * nside
		}
		return ncap + (ir-1)*4*nside + ip, nil
	}

	// Polar caps.
	tp := tt - math.Floor(tt)
	tmp := ns * math.Sqrt(3*(1-za))
	jp := int64(tp * tmp)
	jm := int64((1 - tp) * tmp)

	ir := jp + jm + 1 // ring number counted from the closest pole
	ip := int64(tt * float64(ir))
	ip = ip % (4 * ir)
	if ip < 0 {
		ip += 4 * ir
	}

	if z > 0 {
		return 2*ir*(ir-1) + ip, nil
	}
	return npix - 2*ir*(ir+1) + ip, nil
}
