package template

import "fmt"

// anyToString is the fallback stringifier for values that aren't one of
// the primitive kinds handled directly in stringify (lists, maps, and any
// other artifact value a step happens to store).
func anyToString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
