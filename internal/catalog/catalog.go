package catalog

import (
	"encoding/json"
	"fmt"
	"path"
)

// FeedFileName is the per-side feed document written by the uploader.
const FeedFileName = "videos_recientes.json"

// FolderCredentials describe a side feed hosted behind a file-sharing folder.
type FolderCredentials struct {
	Provider string `json:"provider,omitempty"`
	Path     string `json:"path,omitempty"`
	Token    string `json:"token,omitempty"`
}

type Side struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	FeedAddress string             `json:"feed"`
	Folder      *FolderCredentials `json:"folder,omitempty"`
}

type Court struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Sides []Side `json:"sides"`
}

// Side looks up a side of the court by id.
func (c Court) Side(id string) (Side, bool) {
	for _, s := range c.Sides {
		if s.ID == id {
			return s, true
		}
	}
	return Side{}, false
}

type Location struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Courts []Court `json:"courts"`
}

// Court looks up a court of the location by id.
func (l Location) Court(id string) (Court, bool) {
	for _, c := range l.Courts {
		if c.ID == id {
			return c, true
		}
	}
	return Court{}, false
}

// Tree is the immutable location → court → side hierarchy of one session.
type Tree struct {
	Locations []Location `json:"locations"`
}

func (t *Tree) Location(id string) (Location, bool) {
	for _, l := range t.Locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

func (t *Tree) Court(loc, can string) (Court, bool) {
	l, ok := t.Location(loc)
	if !ok {
		return Court{}, false
	}
	return l.Court(can)
}

func (t *Tree) Side(loc, can, side string) (Side, bool) {
	c, ok := t.Court(loc, can)
	if !ok {
		return Side{}, false
	}
	return c.Side(side)
}

// Wire shapes of config_locations.json. Both the Spanish keys written by
// the provisioning scripts and English aliases are accepted.
type rawConfig struct {
	Locaciones []rawLocation `json:"locaciones"`
	Locations  []rawLocation `json:"locations"`
}

type rawLocation struct {
	ID     string     `json:"id"`
	Nombre string     `json:"nombre"`
	Name   string     `json:"name"`
	Cancha []rawCourt `json:"cancha"`
	Courts []rawCourt `json:"courts"`
}

type rawCourt struct {
	ID     string    `json:"id"`
	Nombre string    `json:"nombre"`
	Name   string    `json:"name"`
	Lados  []rawSide `json:"lados"`
	Sides  []rawSide `json:"sides"`
}

type rawSide struct {
	ID     string             `json:"id"`
	Nombre string             `json:"nombre"`
	Name   string             `json:"name"`
	Feed   string             `json:"feed"`
	URL    string             `json:"url"`
	JSON   string             `json:"json_url"`
	Folder *FolderCredentials `json:"folder"`
}

// UnmarshalJSON accepts either a bare side id or a side object.
func (s *rawSide) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*s = rawSide{ID: id}
		return nil
	}
	type plain rawSide
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = rawSide(p)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DefaultFeedAddress is the feed path used when a side does not declare one.
func DefaultFeedAddress(loc, can, side string) string {
	return path.Join("Locaciones", loc, can, side, FeedFileName)
}

func parseTree(data []byte) (*Tree, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode locations: %v", ErrParse, err)
	}
	locs := raw.Locaciones
	if len(locs) == 0 {
		locs = raw.Locations
	}
	if locs == nil {
		return nil, fmt.Errorf("%w: locations document has no locaciones list", ErrParse)
	}

	tree := &Tree{Locations: make([]Location, 0, len(locs))}
	for _, rl := range locs {
		if rl.ID == "" {
			return nil, fmt.Errorf("%w: location without id", ErrParse)
		}
		loc := Location{ID: rl.ID, Name: firstNonEmpty(rl.Nombre, rl.Name, rl.ID)}
		courts := rl.Cancha
		if len(courts) == 0 {
			courts = rl.Courts
		}
		for _, rc := range courts {
			if rc.ID == "" {
				return nil, fmt.Errorf("%w: court without id in %s", ErrParse, rl.ID)
			}
			court := Court{ID: rc.ID, Name: firstNonEmpty(rc.Nombre, rc.Name, rc.ID)}
			sides := rc.Lados
			if len(sides) == 0 {
				sides = rc.Sides
			}
			for _, rs := range sides {
				if rs.ID == "" {
					return nil, fmt.Errorf("%w: side without id in %s/%s", ErrParse, rl.ID, rc.ID)
				}
				court.Sides = append(court.Sides, Side{
					ID:          rs.ID,
					Name:        firstNonEmpty(rs.Nombre, rs.Name, rs.ID),
					FeedAddress: firstNonEmpty(rs.Feed, rs.JSON, rs.URL, DefaultFeedAddress(rl.ID, rc.ID, rs.ID)),
					Folder:      rs.Folder,
				})
			}
			loc.Courts = append(loc.Courts, court)
		}
		tree.Locations = append(tree.Locations, loc)
	}
	return tree, nil
}
