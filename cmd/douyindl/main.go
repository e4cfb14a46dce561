// Command douyindl downloads the posts of Douyin user profiles.
package main

func main() {
	Execute()
}
