package infra

import "path/filepath"

// Paths is the explicit file layout the provisioning core works against.
// Everything is rooted at the project directory so tests can point the whole
// subsystem at a temp dir.
type Paths struct {
	Root            string
	ComposeFile     string
	CredentialsFile string

	infraDir  string
	outputDir string
}

func DefaultPaths(root string) Paths {
	return Paths{
		Root:            root,
		ComposeFile:     filepath.Join(root, "docker-compose.yml"),
		CredentialsFile: filepath.Join(root, ".env.production"),
		infraDir:        "infra",
		outputDir:       filepath.Join("prod-deployments", "infra"),
	}
}

// ModuleDir is where the terraform module for one resource kind lives.
func (p Paths) ModuleDir(provider, resource string) string {
	return filepath.Join(p.Root, p.infraDir, provider, resource)
}

// VarsFile is the declarative variables file regenerated on every
// GenerateConfig call.
func (p Paths) VarsFile(provider, resource string) string {
	return filepath.Join(p.ModuleDir(provider, resource), "terraform.tfvars.json")
}

// DataFile is the persisted infra-output JSON for one resource kind.
func (p Paths) DataFile(provider, resource string) string {
	return filepath.Join(p.Root, p.outputDir, provider, resource+".json")
}
