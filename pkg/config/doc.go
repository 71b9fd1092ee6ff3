/*
Package config holds the build context and staging rules for libstage.

	            +-------------+
	            |   Config    |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	|    Env    |           |  Rules  |
	| (process) |           | (file)  |
	+-----------+           +---------+

🎯 Purpose:
- Env captures what the outer build system tells us: target OS, profile,
  output root and the step's own position. It is read once through a Lookup
  so nothing else touches the process environment.
- Rules describe where each platform's runtime libraries live under the
  vendor SDK and how to match them (exact names or name prefixes).

🔄 Precedence:
1. command line flags
2. process environment
3. dotenv file (--env-file)
4. built-in defaults

Rules files are YAML, JSON or HCL, selected by extension through the Parser
registry. A file only needs to name what it changes; it is merged over
DefaultRules.

Example (HCL):

	sdk_root = "../nvngx-sys"
	ignore   = ["*.debug"]

	platform "linux" {
	  source   = "DLSS/lib/Linux_x86_64/rel"
	  prefixes = ["libnvidia-ngx-dlss.so", "libnvidia-ngx-dlssd.so"]
	}

	platform "windows" {
	  source = "DLSS/lib/Windows_x86_64/rel"
	  files  = ["nvngx_dlss.dll", "nvngx_dlssd.dll"]
	}
*/
package config
