package mcpserver

// LinkContract describes the link rules LLM consumers should respect when
// linking resumes, cover letters and job applications.
const LinkContract = `# careerlink Link Contract

Resumes, cover letters and job applications reference each other by id.
The references are kept consistent by the server; use the link tools
instead of editing reference fields directly.

## Fields

| Record          | Field                | Points to        |
|-----------------|----------------------|------------------|
| resume          | job_application_id   | job application  |
| cover letter    | resume_id            | resume           |
| cover letter    | job_application_id   | job application  |
| job application | resume_id            | resume           |
| job application | cover_letter_id      | cover letter     |

## Rules

1. **Symmetry.** A resume and a job link each other or neither does. The same
   holds for a cover letter and a job.
2. **One partner.** A job has at most one resume and one cover letter. Linking
   a new partner detaches the old one.
3. **Cover letters follow their resume.** When a cover letter's resume is
   linked to a job, the cover letter is linked to that job too.
4. **No dangling ids.** A reference to a deleted record is cleared on the next
   read of either side.

## Tools

- ` + "`" + `get_links` + "`" + ` audits the entity, repairs what it can and returns the linked records.
- ` + "`" + `link_*` + "`" + ` / ` + "`" + `unlink_*` + "`" + ` change links; ` + "`" + `kind` + "`" + ` is the acting entity.
- ` + "`" + `audit_entity` + "`" + ` reports inconsistencies by code (A1-A4, B1-B4, C1-C2, D1-D5).

A record never links to its own kind: linking a job to a job is ignored.

## Example

Linking resume R1 to job J1 (` + "`" + `link_job kind=resume id=R1 job_id=J1` + "`" + `) sets
R1.job_application_id=J1 and J1.resume_id=R1, clears the resume_id of R1's
previous job, and moves every cover letter of R1 onto J1.
`
