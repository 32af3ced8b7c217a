// README: Seed locations for the simulated Dhaka fleet.
package fleet

import (
	"fmt"
	"math/rand"
	"time"

	"ridesim/internal/types"
)

// DhakaBounds keeps simulated vehicles inside the Dhaka service area.
var DhakaBounds = Bounds{MinLat: 23.6, MaxLat: 23.9, MinLng: 90.2, MaxLng: 90.6}

type baseLocation struct {
	Lat, Lng float64
	Area     string
}

var dhakaLocations = []baseLocation{
	{23.8103, 90.4125, "Dhaka City Center"},
	{23.7279, 90.4117, "Old Dhaka"},
	{23.7104, 90.4074, "Sadarghat"},
	{23.7196, 90.4076, "Chawk Bazaar"},
	{23.7341, 90.3820, "Azimpur"},
	{23.7340, 90.3864, "Dhanmondi"},
	{23.7449, 90.3753, "Dhanmondi 32"},
	{23.7286, 90.3851, "Dhanmondi 27"},
	{23.7395, 90.3912, "Dhanmondi 15"},
	{23.7313, 90.3745, "Dhanmondi 8"},
	{23.7909, 90.4043, "Gulshan 1"},
	{23.7925, 90.4077, "Gulshan 2"},
	{23.7853, 90.4159, "Gulshan Circle"},
	{23.8481, 90.3977, "Banani"},
	{23.7944, 90.3886, "Baridhara"},
	{23.8066, 90.3991, "Baridhara DOHS"},
	{23.8732, 90.3938, "Uttara Sector 3"},
	{23.8838, 90.3967, "Uttara Sector 7"},
	{23.8659, 90.3889, "Uttara Sector 10"},
	{23.8551, 90.3901, "Uttara Sector 12"},
	{23.8775, 90.4023, "Uttara Sector 4"},
	{23.8952, 90.3856, "Airport Area"},
	{23.8206, 90.3742, "Mirpur 1"},
	{23.8290, 90.3665, "Mirpur 2"},
	{23.8158, 90.3554, "Mirpur 10"},
	{23.8068, 90.3689, "Mirpur 6"},
	{23.8342, 90.3789, "Mirpur 11"},
	{23.8124, 90.3612, "Mirpur 12"},
	{23.7563, 90.3782, "Mohammadpur"},
	{23.7608, 90.3689, "Mohammadpur Housing"},
	{23.7447, 90.3723, "Lalmatia"},
	{23.7644, 90.3896, "Kalabagan"},
	{23.7525, 90.3845, "Green Road"},
	{23.7752, 90.3647, "Tejgaon"},
	{23.7689, 90.3745, "Tejgaon Industrial"},
	{23.7834, 90.3598, "Farmgate"},
	{23.7756, 90.3513, "Kawran Bazar"},
	{23.7698, 90.3889, "Karwan Bazar"},
	{23.7272, 90.4108, "Wari"},
	{23.7345, 90.4203, "Gendaria"},
	{23.7189, 90.4156, "Shantinagar"},
	{23.7408, 90.4167, "Malibagh"},
	{23.7456, 90.4289, "Rampura"},
	{23.7623, 90.4234, "Hatirjheel"},
	{23.7335, 90.4172, "Motijheel"},
	{23.7298, 90.4143, "Dilkusha"},
	{23.7367, 90.4089, "Paltan"},
	{23.7254, 90.4089, "Bijoynagar"},
	{23.7598, 90.3782, "Ramna"},
	{23.7813, 90.3912, "Cantonment"},
	{23.7734, 90.3867, "Elephant Road"},
	{23.7889, 90.3756, "Sher-e-Bangla Nagar"},
	{23.7412, 90.3945, "New Market"},
	{23.7298, 90.3967, "Nilkhet"},
	{23.7267, 90.3945, "Chankharpul"},
	{23.7156, 90.3889, "Lalbagh"},
	{23.7285, 90.3914, "Dhaka University"},
	{23.7612, 90.3711, "Jahangirnagar University Area"},
	{23.8134, 90.4267, "BUET Area"},
	{23.7823, 90.4089, "Bashundhara"},
	{23.8067, 90.4156, "Bashundhara R/A"},
	{23.7734, 90.4234, "Badda"},
	{23.7556, 90.4289, "Mugda"},
	{23.7489, 90.4134, "Khilgaon"},
	{23.7023, 90.3945, "Keraniganj"},
	{23.6945, 90.3867, "Dakshin Khan"},
	{23.7134, 90.3789, "Hazaribagh"},
	{23.8956, 90.4023, "Dakshinkhan"},
	{23.8867, 90.3745, "Turag"},
	{23.8745, 90.4156, "Uttarkhan"},
	{23.7689, 90.4356, "Jatrabari"},
	{23.7812, 90.4423, "Sayedabad"},
	{23.7623, 90.4467, "Demra"},
	{23.7834, 90.3289, "Savar Road"},
	{23.7556, 90.3456, "Dhamrai Road"},
	{23.8134, 90.3345, "Ashulia Area"},
}

// SeedDhaka builds the initial fleet: one vehicle per base location,
// jittered within ±0.005 degrees, with roughly 80% of them available.
func SeedDhaka(r *rand.Rand, now time.Time) []Vehicle {
	out := make([]Vehicle, 0, len(dhakaLocations))
	for i, loc := range dhakaLocations {
		out = append(out, Vehicle{
			ID: types.ID(fmt.Sprintf("cab_%d", i+1)),
			Position: types.Point{
				Lat: loc.Lat + (r.Float64()-0.5)*0.01,
				Lng: loc.Lng + (r.Float64()-0.5)*0.01,
			},
			Heading:    r.Float64() * 360,
			Speed:      0.5 + r.Float64()*1.5,
			Available:  r.Float64() > 0.2,
			Pattern:    patterns[r.Intn(len(patterns))],
			Area:       loc.Area,
			LastUpdate: now,
		})
	}
	return out
}
