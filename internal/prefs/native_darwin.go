//go:build darwin

package prefs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

// defaultsRoot maps each node to its own UserDefaults domain.
type defaultsRoot struct{}

func openNative(string) (Root, error) {
	return defaultsRoot{}, nil
}

func (defaultsRoot) Node(name string) Backend {
	return &defaultsNode{domain: name}
}

func (defaultsRoot) Close() error {
	return nil
}

type defaultsNode struct {
	domain string
}

func (n *defaultsNode) GetString(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", n.domain, key).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading default for key '%s': %w", key, err)
	}
	return defaultsValue(out), true, nil
}

// defaultsValue strips the single newline `defaults read` appends. Any other
// whitespace belongs to the stored value.
func defaultsValue(out []byte) string {
	return strings.TrimSuffix(string(out), "\n")
}

func (n *defaultsNode) SetString(key, val string) error {
	return exec.Command("defaults", "write", n.domain, key, "-string", val).Run()
}

func (n *defaultsNode) Delete(key string) error {
	err := exec.Command("defaults", "delete", n.domain, key).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return nil
	}
	return err
}

func (n *defaultsNode) Keys() ([]string, error) {
	out, err := exec.Command("defaults", "export", n.domain, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("exporting defaults domain %s: %w", n.domain, err)
	}
	keys, err := plistDictKeys(out)
	if err != nil {
		return nil, fmt.Errorf("parsing defaults domain %s: %w", n.domain, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// plistDictKeys returns the keys of the top-level dict in an XML plist.
func plistDictKeys(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var keys []string
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			// plist > dict > key
			if depth == 3 && t.Name.Local == "key" {
				var k string
				if err := dec.DecodeElement(&k, &t); err != nil {
					return nil, err
				}
				keys = append(keys, k)
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}
}
