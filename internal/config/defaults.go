package config

// Default values applied after unmarshalling and before validation.
const (
	DefaultBranch   = "gh-pages"
	DefaultAlias    = "dev"
	DefaultTokenEnv = "GITHUB_TOKEN"
	DefaultListen   = ":8082"
)

func applyDefaults(cfg *Config) {
	if cfg.Project.SourceDir == "" {
		cfg.Project.SourceDir = "."
	}
	if len(cfg.DevVersion.StripSuffixes) == 0 {
		cfg.DevVersion.StripSuffixes = []string{"-SNAPSHOT"}
	}
	if len(cfg.Toolchain.InstallArgs) == 0 {
		cfg.Toolchain.InstallArgs = []string{"install"}
	}
	if cfg.Docs.SiteDir == "" {
		cfg.Docs.SiteDir = "site"
	}
	if cfg.Docs.Linkcheck == "" {
		cfg.Docs.Linkcheck = LinkcheckOff
	}
	if cfg.Publish.Branch == "" {
		cfg.Publish.Branch = DefaultBranch
	}
	if cfg.Publish.Alias == "" {
		cfg.Publish.Alias = DefaultAlias
	}
	if cfg.Publish.TokenEnv == "" {
		cfg.Publish.TokenEnv = DefaultTokenEnv
	}
	if cfg.Daemon != nil && cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = DefaultListen
	}
}
