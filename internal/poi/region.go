package poi

import "strings"

// RegionName is appended to location strings that do not mention it.
const RegionName = "Phuket"

// RegionBounds covers Phuket island and the causeway approach.
var RegionBounds = BBox{South: 7.70, West: 98.20, North: 8.25, East: 98.50}

var districtBounds = map[string]BBox{
	"patong":       {South: 7.870, West: 98.270, North: 7.920, East: 98.320},
	"kathu":        {South: 7.890, West: 98.310, North: 7.940, East: 98.360},
	"karon":        {South: 7.830, West: 98.280, North: 7.870, East: 98.320},
	"kata":         {South: 7.805, West: 98.285, North: 7.835, East: 98.320},
	"nai harn":     {South: 7.765, West: 98.290, North: 7.790, East: 98.320},
	"rawai":        {South: 7.750, West: 98.300, North: 7.800, East: 98.350},
	"chalong":      {South: 7.800, West: 98.320, North: 7.860, East: 98.380},
	"kamala":       {South: 7.935, West: 98.270, North: 7.970, East: 98.300},
	"surin":        {South: 7.965, West: 98.270, North: 7.990, East: 98.300},
	"bang tao":     {South: 7.985, West: 98.280, North: 8.030, East: 98.320},
	"cherng talay": {South: 7.970, West: 98.280, North: 8.040, East: 98.340},
	"layan":        {South: 8.020, West: 98.280, North: 8.045, East: 98.310},
	"nai yang":     {South: 8.070, West: 98.280, North: 8.105, East: 98.320},
	"mai khao":     {South: 8.100, West: 98.280, North: 8.200, East: 98.320},
	"thalang":      {South: 7.990, West: 98.320, North: 8.120, East: 98.400},
	"phuket town":  {South: 7.860, West: 98.370, North: 7.910, East: 98.410},
	"cape panwa":   {South: 7.790, West: 98.390, North: 7.830, East: 98.420},
	"koh kaew":     {South: 7.930, West: 98.360, North: 7.990, East: 98.420},
}

// KnownDistricts is the ordered set of district labels used for geocode district extraction.
// Multi-word names are listed first; the first match wins.
var KnownDistricts = []string{
	"Cherng Talay", "Phuket Town", "Cape Panwa", "Nai Harn", "Bang Tao", "Nai Yang",
	"Mai Khao", "Koh Kaew", "Kamala", "Thalang", "Chalong", "Patong", "Kathu",
	"Karon", "Rawai", "Surin", "Layan", "Kata",
}

// DistrictBounds looks up a district box case-insensitively.
func DistrictBounds(district string) (BBox, bool) {
	b, ok := districtBounds[strings.ToLower(strings.TrimSpace(district))]
	return b, ok
}
