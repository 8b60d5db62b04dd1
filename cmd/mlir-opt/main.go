// mlir-opt runs transformation passes over sample functions and prints the
// IR before and after each pass. It is meant as a demo and debugging aid:
//
//	mlir-opt -sample=shape-of-read-variable -passes=replicate-invariant-op-hoisting
//
// Without flags it runs interactively, when on a terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"k8s.io/klog/v2"

	"github.com/gomlx/go-mlir/pkg/transforms"
)

var (
	flagSample = flag.String("sample", "",
		"Sample function to transform. Valid values: see -list.")
	flagPasses = flag.String("passes", "",
		"Comma-separated pass pipeline to run. Valid values: see -list.")
	flagList = flag.Bool("list", false, "List available samples and passes and exit.")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
	irStyle      = lipgloss.NewStyle().PaddingLeft(2)
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagList {
		fmt.Println(sectionStyle.Render("Samples:"))
		for i, name := range sampleValues {
			fmt.Printf("  %s: %s\n", name, sampleDescriptions[i])
		}
		fmt.Println(sectionStyle.Render("Passes:"))
		for _, name := range transforms.Names() {
			pass, err := transforms.New(name)
			if err != nil {
				klog.Fatalf("Failed on error: %+v", err)
			}
			fmt.Printf("  %s: %s\n", name, pass.Description())
		}
		return
	}

	if *flagSample == "" || *flagPasses == "" {
		if !term.IsTerminal(os.Stdin.Fd()) {
			klog.Fatalf("both -sample and -passes are required when not running interactively "+
				"(see %s -list)", os.Args[0])
		}
		if err := interact(); err != nil {
			if err == huh.ErrUserAborted {
				fmt.Println("Aborted.")
				return
			}
			klog.Fatalf("Failed on error: %+v", err)
		}
	}

	if *flagPasses == "" {
		klog.Fatalf("No passes selected, valid values: %s", strings.Join(transforms.Names(), ", "))
	}
	builder, ok := sampleBuilders[*flagSample]
	if !ok {
		klog.Fatalf("Sample %q not found, valid values: %s", *flagSample, strings.Join(sampleValues, ", "))
	}
	fn, err := builder()
	if err != nil {
		klog.Fatalf("Failed on error: %+v", err)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Sample %q", *flagSample)))
	fmt.Println(sectionStyle.Render("Before:"))
	fmt.Println(irStyle.Render(fn.String()))

	for _, name := range strings.Split(*flagPasses, ",") {
		name = strings.TrimSpace(name)
		pass, err := transforms.New(name)
		if err != nil {
			klog.Fatalf("Failed on error: %+v", err)
		}
		if err := pass.Run(fn); err != nil {
			klog.Fatalf("Pass %q failed: %+v", name, err)
		}
		fmt.Println(sectionStyle.Render(fmt.Sprintf("After %s:", name)))
		fmt.Println(irStyle.Render(fn.String()))
	}
}

// interact asks for the missing -sample and -passes values with a form.
func interact() error {
	var fields []huh.Field
	if *flagSample == "" {
		options := make([]huh.Option[string], len(sampleValues))
		for i, name := range sampleValues {
			options[i] = huh.NewOption(fmt.Sprintf("%s (%s)", name, sampleDescriptions[i]), name)
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Sample function to transform").
			Options(options...).
			Value(flagSample))
	}
	var selectedPasses []string
	if *flagPasses == "" {
		names := transforms.Names()
		options := make([]huh.Option[string], len(names))
		for i, name := range names {
			options[i] = huh.NewOption(name, name)
		}
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Pass pipeline to run, in order").
			Options(options...).
			Value(&selectedPasses))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}
	if *flagPasses == "" {
		*flagPasses = strings.Join(selectedPasses, ",")
	}
	return nil
}
