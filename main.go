// Command reciperunner executes a declarative JSON recipe. See cmd.Execute
// for the CLI surface.
package main

import "github.com/recipeforge/reciperunner/cmd"

func main() {
	cmd.Execute()
}
