package loader

import (
	"fmt"

	"github.com/spf13/afero"
)

// SetupOpts selects the backends registered by Setup.
type SetupOpts struct {
	// Root serves file:// descriptors. Empty disables the scheme.
	Root string
	// ScriptRoot serves script:// classes. Empty disables the scheme.
	ScriptRoot string
	// CatalogPath is the sqlite catalog for catalog://. Empty disables the scheme.
	CatalogPath string
	// Proxy is used by the http and https backends.
	Proxy string
	// SSHKeyPath and KnownHostsPath configure the sftp backend.
	SSHKeyPath     string
	KnownHostsPath string

	Router RouterOpts
}

// Setup creates a Router with every configured backend registered.
// http, https, ftp and ftps are always available; sftp requires
// KnownHostsPath.
func Setup(o *SetupOpts) (*Router, error) {
	client, err := NewHTTPClient(o.Proxy)
	if err != nil {
		return nil, fmt.Errorf("loader proxy: %w", err)
	}
	r := NewRouter(&o.Router)
	if o.Root != "" {
		r.Register("file", NewOsFileBackend(o.Root))
	}
	if o.ScriptRoot != "" {
		r.Register("script", NewScriptBackend(afero.NewBasePathFs(afero.NewOsFs(), o.ScriptRoot)))
	}
	if o.CatalogPath != "" {
		cat, err := OpenCatalog(o.CatalogPath)
		if err != nil {
			return nil, err
		}
		r.Register("catalog", cat)
	}
	httpBackend := NewHTTPBackend(client)
	r.Register("http", httpBackend)
	r.Register("https", httpBackend)
	ftpBackend := NewFTPBackend()
	r.Register("ftp", ftpBackend)
	r.Register("ftps", ftpBackend)
	if o.KnownHostsPath != "" {
		r.Register("sftp", NewSFTPBackend(o.SSHKeyPath, o.KnownHostsPath))
	}
	return r, nil
}
