package secrets

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// platformStore builds the commands of one OS credential store
type platformStore struct {
	name   string
	set    func(service, account, secret string) *exec.Cmd
	get    func(service, account string) *exec.Cmd
	delete func(service, account string) *exec.Cmd
}

var platformStores = map[string]platformStore{
	"darwin": {
		name: "keychain",
		set: func(service, account, secret string) *exec.Cmd {
			// -U updates an existing entry in place
			return exec.Command("security", "add-generic-password", "-s", service, "-a", account, "-w", secret, "-U")
		},
		get: func(service, account string) *exec.Cmd {
			return exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w")
		},
		delete: func(service, account string) *exec.Cmd {
			return exec.Command("security", "delete-generic-password", "-s", service, "-a", account)
		},
	},
	"linux": {
		name: "secret service",
		set: func(service, account, secret string) *exec.Cmd {
			cmd := exec.Command("secret-tool", "store", "--label", service+" - "+account, "service", service, "account", account)
			cmd.Stdin = strings.NewReader(secret)
			return cmd
		},
		get: func(service, account string) *exec.Cmd {
			return exec.Command("secret-tool", "lookup", "service", service, "account", account)
		},
		delete: func(service, account string) *exec.Cmd {
			return exec.Command("secret-tool", "clear", "service", service, "account", account)
		},
	},
	"windows": {
		name: "credential manager",
		set: func(service, account, secret string) *exec.Cmd {
			return exec.Command("cmdkey", "/generic:"+windowsTarget(service, account), "/user:"+account, "/pass:"+secret)
		},
		get: func(service, account string) *exec.Cmd {
			script := fmt.Sprintf(`$cred = cmdkey /list:%s 2>&1
if ($cred -match 'Password:(.+)') { $matches[1].Trim() }`, windowsTarget(service, account))
			return exec.Command("powershell", "-Command", script)
		},
		delete: func(service, account string) *exec.Cmd {
			return exec.Command("cmdkey", "/delete:"+windowsTarget(service, account))
		},
	},
}

func windowsTarget(service, account string) string {
	return service + ":" + account
}

// osKeyring shells out to the credential store of the running OS
type osKeyring struct{}

func (osKeyring) platform() (platformStore, error) {
	p, ok := platformStores[runtime.GOOS]
	if !ok {
		return platformStore{}, ErrKeyringUnavailable
	}
	return p, nil
}

// Set replaces the secret stored for service/account
func (k osKeyring) Set(service, account, secret string) error {
	p, err := k.platform()
	if err != nil {
		return err
	}
	// stale entries make some stores reject the write
	_ = p.delete(service, account).Run()

	if err := p.set(service, account, secret).Run(); err != nil {
		return fmt.Errorf("failed to store in %s: %w", p.name, err)
	}
	return nil
}

func (k osKeyring) Get(service, account string) (string, error) {
	p, err := k.platform()
	if err != nil {
		return "", err
	}
	output, err := p.get(service, account).Output()
	if err != nil {
		return "", fmt.Errorf("failed to retrieve from %s: %w", p.name, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Delete removes the secret; a missing entry is not an error
func (k osKeyring) Delete(service, account string) error {
	p, err := k.platform()
	if err != nil {
		return err
	}
	_ = p.delete(service, account).Run()
	return nil
}
