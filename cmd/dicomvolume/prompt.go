package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

const folderPrompt = "Enter the path to the DICOM folder: "

// promptFolder asks for the input folder: a huh form on a terminal, a plain
// line read otherwise.
func promptFolder(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		var folder string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Key("folder").
					Title("DICOM folder").
					Description("Folder scanned recursively for DICOM slices").
					Value(&folder).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("folder path is required")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			return "", err
		}
		return strings.TrimSpace(folder), nil
	}
	return readLine(in, out, folderPrompt)
}

func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// waitForEnter blocks until a line (or EOF) arrives on in.
func waitForEnter(in io.Reader, out io.Writer) {
	readLine(in, out, "Press Enter to exit...")
}
