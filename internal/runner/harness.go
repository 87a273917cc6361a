package runner

import "strings"

const harnessPrelude = `# statloom harness
args <- commandArgs(trailingOnly = TRUE)
if (length(args) < 1) {
  stop("Usage: Rscript <script> <input_csv> [output_plot_path]", call. = FALSE)
}
input_file <- args[1]
data <- read.csv(input_file)

# generated analysis
`

// Harness wraps generated code with argument parsing and data loading. code is appended verbatim.
func Harness(code string) string {
	var b strings.Builder
	b.Grow(len(harnessPrelude) + len(code) + 1)
	b.WriteString(harnessPrelude)
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
