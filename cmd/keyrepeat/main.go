// Command keyrepeat reads a keyboard, via evdev, and logs the key repeats
// synthesized for it.
package main

func main() {
	Execute()
}
