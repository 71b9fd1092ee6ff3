/*
Package operation runs the runtime library staging step.

	+-------------+
	|  Resolve    |  platform.Resolve: env + rules -> plan
	+------+------+
	       |
	+------+------+
	|  Declare    |  trigger: rerun when the vendor lib dir changes
	+------+------+
	       |
	+------+------+
	|   Locate    |  locate: exact names or prefix scan
	+------+------+
	       |
	+------+------+
	|    Stage    |  stage: copy into <out>/<profile>/examples and <out>/<profile>
	+-------------+

🎯 Failure policy:
- a missing SDK directory or missing library file stages nothing and succeeds
- an existing source directory that cannot be read fails the operation
- a file or destination that cannot be written is reported and skipped

🔍 Example:

	op, err := operation.New(operation.Options{
		Env:      env,
		Rules:    rules,
		Declarer: trigger.NewDeclarer(os.Stdout, trigger.FormatCargo),
	})
	if err != nil {
		return err
	}
	if err := op.Execute(ctx); err != nil {
		return err
	}
	report := op.Result().Report
*/
package operation
