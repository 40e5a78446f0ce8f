//go:build !darwin

package prefs

func openNative(dataDir string) (Root, error) {
	r, err := OpenFile(dataDir)
	if err != nil {
		return nil, err
	}
	return r, nil
}
