package geo

// City is a named city center.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

// Cities is the gazetteer every customer and merchant is placed in.
var Cities = []City{
	{Name: "Bengaluru", Lat: 12.9716, Lon: 77.5946},
	{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777},
	{Name: "Delhi", Lat: 28.6139, Lon: 77.2090},
	{Name: "Hyderabad", Lat: 17.3850, Lon: 78.4867},
	{Name: "Chennai", Lat: 13.0827, Lon: 80.2707},
	{Name: "Pune", Lat: 18.5204, Lon: 73.8567},
	{Name: "Mysuru", Lat: 12.2958, Lon: 76.6394},
	{Name: "Indore", Lat: 22.7196, Lon: 75.8577},
	{Name: "Coimbatore", Lat: 11.0168, Lon: 76.9558},
}

// LookupCity returns the gazetteer entry with the given name.
func LookupCity(name string) (City, bool) {
	for _, c := range Cities {
		if c.Name == name {
			return c, true
		}
	}
	return City{}, false
}

// CityNames returns the gazetteer names in declaration order.
func CityNames() []string {
	names := make([]string, len(Cities))
	for i, c := range Cities {
		names[i] = c.Name
	}
	return names
}
