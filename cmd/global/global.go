package global

import (
	"bytes"

	"github.com/fwctl/fwctl/internal/ui"
	"github.com/mgutz/ansi"
	"github.com/tomlazar/table"
)

var (
	CfgFile    string
	NoColor    bool
	NoStyle    bool
	Verbose    bool
	ApiAddress string
)

const DefaultApiAddress = "127.0.0.1:8731"

// TableConfig is the style used for all tables printed by the cli
func TableConfig() *table.Config {
	return &table.Config{
		ShowIndex:       false,
		Color:           !NoColor,
		AlternateColors: true,
		TitleColorCode:  ansi.ColorCode("white+buf"),
		AltColorCodes: []string{
			ansi.ColorCode("white"),
			ansi.ColorCode("white:236"),
		},
	}
}

// PrintTables prints all tables which have rows, separated by a blank line
func PrintTables(tables ...table.Table) {
	for idx, tab := range tables {
		if tab.Rows == nil {
			continue
		}
		var buf bytes.Buffer
		if err := tab.WriteTable(&buf, TableConfig()); err != nil {
			ui.Fatal("Error printing table: %v", err)
		}
		if idx < (len(tables) - 1) {
			ui.Printf("%s", buf.String())
		} else {
			ui.Printfln("%s", buf.String())
		}
	}
}
