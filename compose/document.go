// Package compose reads and rewrites the project's Docker Compose document:
// service dependency resolution for build/run/deploy ordering and shared
// volume driver reconciliation against provisioned storage.
package compose

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Document is a parsed compose file. Services keep their declaration order;
// the raw ordered tree is retained so Save rewrites only what changed.
type Document struct {
	Services []*Service
	Volumes  map[string]*Volume

	byName map[string]*Service
	root   yaml.MapSlice
}

// Service is one compose service entry. DependsOn is normalized from both the
// list form and the map-with-condition form.
type Service struct {
	Name        string
	Image       string
	DependsOn   []string
	Healthcheck *Healthcheck
	Index       int
}

// Healthcheck carries the declared container health probe. Test is the
// command joined with spaces when declared as a list.
type Healthcheck struct {
	Test     string
	Interval string
	Retries  int
}

// Volume is a top-level named volume with its driver configuration.
type Volume struct {
	Name       string
	Driver     string
	DriverOpts map[string]string
}

func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compose: read %s: %v", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("compose: parse %s: %v", path, err)
	}
	return doc, nil
}

func Parse(data []byte) (*Document, error) {
	var root any
	if err := yaml.UnmarshalWithOptions(data, &root, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}
	ms, ok := root.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("document root is not a mapping")
	}

	doc := &Document{
		Volumes: map[string]*Volume{},
		byName:  map[string]*Service{},
		root:    ms,
	}

	for _, item := range ms {
		switch asString(item.Key) {
		case "services":
			services, ok := item.Value.(yaml.MapSlice)
			if !ok {
				if item.Value == nil {
					continue
				}
				return nil, fmt.Errorf("services is not a mapping")
			}
			for _, entry := range services {
				name := asString(entry.Key)
				svc, err := parseService(name, entry.Value)
				if err != nil {
					return nil, err
				}
				if _, dup := doc.byName[name]; dup {
					return nil, fmt.Errorf("duplicate service %q", name)
				}
				svc.Index = len(doc.Services)
				doc.Services = append(doc.Services, svc)
				doc.byName[name] = svc
			}
		case "volumes":
			volumes, ok := item.Value.(yaml.MapSlice)
			if !ok {
				continue
			}
			for _, entry := range volumes {
				name := asString(entry.Key)
				doc.Volumes[name] = parseVolume(name, entry.Value)
			}
		}
	}
	return doc, nil
}

// Service returns the named service, or nil.
func (d *Document) Service(name string) *Service {
	return d.byName[name]
}

// Save marshals the (possibly rewritten) document back out, preserving the
// original key order and any content this tool does not model.
func (d *Document) Save(path string) error {
	out, err := yaml.Marshal(d.root)
	if err != nil {
		return fmt.Errorf("compose: marshal: %v", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("compose: write %s: %v", path, err)
	}
	return nil
}

// SetVolumeDriver replaces the named volume's driver and driver_opts in both
// the typed view and the raw tree. The volume entry is created if absent.
func (d *Document) SetVolumeDriver(name, driver string, opts map[string]string) {
	d.Volumes[name] = &Volume{Name: name, Driver: driver, DriverOpts: opts}

	optsSlice := yaml.MapSlice{}
	for _, k := range sortedOptKeys(opts) {
		optsSlice = append(optsSlice, yaml.MapItem{Key: k, Value: opts[k]})
	}
	volValue := yaml.MapSlice{
		{Key: "driver", Value: driver},
		{Key: "driver_opts", Value: optsSlice},
	}

	for i, item := range d.root {
		if asString(item.Key) != "volumes" {
			continue
		}
		volumes, _ := item.Value.(yaml.MapSlice)
		for j, entry := range volumes {
			if asString(entry.Key) == name {
				volumes[j].Value = volValue
				d.root[i].Value = volumes
				return
			}
		}
		d.root[i].Value = append(volumes, yaml.MapItem{Key: name, Value: volValue})
		return
	}
	d.root = append(d.root, yaml.MapItem{
		Key:   "volumes",
		Value: yaml.MapSlice{{Key: name, Value: volValue}},
	})
}

// sortedOptKeys orders driver_opts deterministically: the mount triple first,
// anything else alphabetically after.
func sortedOptKeys(opts map[string]string) []string {
	head := []string{"type", "o", "device"}
	var keys []string
	seen := map[string]bool{}
	for _, k := range head {
		if _, ok := opts[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range opts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func parseService(name string, value any) (*Service, error) {
	svc := &Service{Name: name}
	body, ok := value.(yaml.MapSlice)
	if !ok {
		return svc, nil
	}
	for _, item := range body {
		switch asString(item.Key) {
		case "image":
			svc.Image = asString(item.Value)
		case "depends_on":
			deps, err := parseDependsOn(name, item.Value)
			if err != nil {
				return nil, err
			}
			svc.DependsOn = deps
		case "healthcheck":
			svc.Healthcheck = parseHealthcheck(item.Value)
		}
	}
	return svc, nil
}

func parseDependsOn(service string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		var deps []string
		for _, e := range v {
			deps = append(deps, asString(e))
		}
		return deps, nil
	case yaml.MapSlice:
		// long form: name -> {condition: ...}
		var deps []string
		for _, item := range v {
			deps = append(deps, asString(item.Key))
		}
		return deps, nil
	default:
		return nil, fmt.Errorf("service %q: unsupported depends_on form %T", service, value)
	}
}

func parseHealthcheck(value any) *Healthcheck {
	body, ok := value.(yaml.MapSlice)
	if !ok {
		return nil
	}
	hc := &Healthcheck{}
	for _, item := range body {
		switch asString(item.Key) {
		case "test":
			switch t := item.Value.(type) {
			case []any:
				var parts []string
				for _, p := range t {
					parts = append(parts, asString(p))
				}
				hc.Test = strings.Join(parts, " ")
			default:
				hc.Test = asString(t)
			}
		case "interval":
			hc.Interval = asString(item.Value)
		case "retries":
			if n, ok := item.Value.(int); ok {
				hc.Retries = n
			} else if n, ok := item.Value.(uint64); ok {
				hc.Retries = int(n)
			} else if n, ok := item.Value.(int64); ok {
				hc.Retries = int(n)
			}
		}
	}
	return hc
}

func parseVolume(name string, value any) *Volume {
	vol := &Volume{Name: name, DriverOpts: map[string]string{}}
	body, ok := value.(yaml.MapSlice)
	if !ok {
		return vol
	}
	for _, item := range body {
		switch asString(item.Key) {
		case "driver":
			vol.Driver = asString(item.Value)
		case "driver_opts":
			opts, ok := item.Value.(yaml.MapSlice)
			if !ok {
				continue
			}
			for _, opt := range opts {
				vol.DriverOpts[asString(opt.Key)] = asString(opt.Value)
			}
		}
	}
	return vol
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
